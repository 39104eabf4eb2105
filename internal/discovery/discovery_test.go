package discovery

import "testing"

func TestInstanceURL(t *testing.T) {
	inst := Instance{Name: "modcollab-relay-dev", Host: "192.168.1.20", Port: 8090}
	if got, want := inst.URL(), "ws://192.168.1.20:8090/ws"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}
