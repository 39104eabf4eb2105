package types

// validTypes is the closed set of wire message types.
var validTypes = map[string]bool{
	MessageTypeJoin:        true,
	MessageTypeLeave:       true,
	MessageTypeOperation:   true,
	MessageTypeFileContent: true,
	MessageTypeFileSync:    true,
	MessageTypePing:        true,
	MessageTypePong:        true,
	MessageTypeError:       true,
}

// IsValidMessageType reports whether t is one of the eight wire types.
func IsValidMessageType(t string) bool {
	return validTypes[t]
}

// IsValidUserID enforces the ID format shared by session and user IDs:
// 1-64 characters, alphanumeric plus underscore and hyphen. UUIDs pass.
func IsValidUserID(id string) bool {
	if len(id) == 0 || len(id) > 64 {
		return false
	}
	for _, c := range id {
		if !isIDChar(c) {
			return false
		}
	}
	return true
}

// IsValidUsername bounds display names; content is otherwise unconstrained.
func IsValidUsername(name string) bool {
	return len(name) > 0 && len(name) <= 100
}

func isIDChar(c rune) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_' || c == '-'
}

// Validate checks the envelope's fixed fields. Payload fields are validated
// by whoever handles the specific message type.
func (m *WireMessage) Validate() error {
	if !IsValidMessageType(m.Type) {
		return ErrInvalidMessageType
	}
	if m.UserID == "" {
		return ErrMissingUserID
	}
	return nil
}
