package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestIsValidMessageType(t *testing.T) {
	valid := []string{
		MessageTypeJoin, MessageTypeLeave, MessageTypeOperation,
		MessageTypeFileContent, MessageTypeFileSync,
		MessageTypePing, MessageTypePong, MessageTypeError,
	}
	for _, mt := range valid {
		if !IsValidMessageType(mt) {
			t.Errorf("IsValidMessageType(%q) = false, want true", mt)
		}
	}
	for _, mt := range []string{"", "join", "OPERATION ", "CURSOR", "UNKNOWN"} {
		if IsValidMessageType(mt) {
			t.Errorf("IsValidMessageType(%q) = true, want false", mt)
		}
	}
}

func TestIsValidUserID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"alice", true},
		{"b0b-2", true},
		{"user_name", true},
		{"8d6b6f1e-9a8e-4c2f-b2ad-1f9f3f62e111", true},
		{"", false},
		{"has space", false},
		{"emoji💥", false},
		{strings.Repeat("a", 64), true},
		{strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		if got := IsValidUserID(tt.id); got != tt.want {
			t.Errorf("IsValidUserID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestWireMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     WireMessage
		wantErr error
	}{
		{
			name: "valid",
			msg:  WireMessage{Type: MessageTypeJoin, UserID: "alice"},
		},
		{
			name:    "unknown type",
			msg:     WireMessage{Type: "NOPE", UserID: "alice"},
			wantErr: ErrInvalidMessageType,
		},
		{
			name:    "missing sender",
			msg:     WireMessage{Type: MessageTypeJoin},
			wantErr: ErrMissingUserID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.msg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWireMessageJSON(t *testing.T) {
	msg := NewWireMessage(MessageTypeOperation, "alice", map[string]any{
		"filePath": "src/main/java/Mod.java",
		"operation": map[string]any{
			"type": "INSERT", "offset": 3, "length": 0, "text": "x", "timestamp": 99,
		},
	})

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded WireMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != MessageTypeOperation || decoded.UserID != "alice" {
		t.Errorf("envelope fields lost: %+v", decoded)
	}

	filePath, ok := decoded.StringField("filePath")
	if !ok || filePath != "src/main/java/Mod.java" {
		t.Errorf("StringField(filePath) = %q, %v", filePath, ok)
	}
	opMap, ok := decoded.MapField("operation")
	if !ok {
		t.Fatal("MapField(operation) missing after round trip")
	}
	if opMap["type"] != "INSERT" {
		t.Errorf("operation type = %v", opMap["type"])
	}
}

func TestWireMessageFieldAccessors(t *testing.T) {
	msg := &WireMessage{Type: MessageTypeError, UserID: "u"}

	if _, ok := msg.StringField("message"); ok {
		t.Error("StringField on nil data must report absent")
	}
	if _, ok := msg.MapField("anything"); ok {
		t.Error("MapField on nil data must report absent")
	}

	msg.Data = map[string]any{"message": 42}
	if _, ok := msg.StringField("message"); ok {
		t.Error("StringField must reject non-string values")
	}
}
