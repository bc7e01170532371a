package mqtt

import "testing"

func TestTopics_Status(t *testing.T) {
	topics := Topics{}

	got := topics.Status("kiosk-a1b2c3d4")
	want := "devices/kiosk-a1b2c3d4/status"
	if got != want {
		t.Errorf("Status() = %q, want %q", got, want)
	}

	// Deterministic across repeated calls
	if topics.Status("kiosk-a1b2c3d4") != got {
		t.Error("Status() is not stable across calls")
	}
}

func TestTopics_DeviceTopics(t *testing.T) {
	topics := Topics{}
	const id = "kiosk-42"

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"telemetry", topics.Telemetry(id), "devices/kiosk-42/telemetry"},
		{"events", topics.Events(id), "devices/kiosk-42/events"},
		{"command filter", topics.CommandFilter(id), "devices/kiosk-42/cmd/+"},
		{"command ack", topics.CommandAck(id, "loadUrl"), "devices/kiosk-42/cmd/loadUrl/ack"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTopics_ProvisionTopics(t *testing.T) {
	topics := Topics{}

	if got, want := topics.ProvisionRequest("4821"), "provision/4821/request"; got != want {
		t.Errorf("ProvisionRequest() = %q, want %q", got, want)
	}

	if got, want := topics.ProvisionResponse("4821", "kiosk-42"), "provision/4821/response/kiosk-42"; got != want {
		t.Errorf("ProvisionResponse() = %q, want %q", got, want)
	}
}

func TestParseCommandTopic(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		wantCmd string
		wantOK  bool
	}{
		{"valid command", "devices/kiosk-42/cmd/loadUrl", "loadUrl", true},
		{"valid reboot", "devices/kiosk-42/cmd/reboot", "reboot", true},
		{"too few segments", "devices/kiosk-42/cmd", "", false},
		{"too many segments", "devices/kiosk-42/cmd/loadUrl/ack", "", false},
		{"wrong prefix", "things/kiosk-42/cmd/loadUrl", "", false},
		{"wrong category", "devices/kiosk-42/state/loadUrl", "", false},
		{"empty command", "devices/kiosk-42/cmd/", "", false},
		{"empty device", "devices//cmd/loadUrl", "", false},
		{"empty topic", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok := ParseCommandTopic(tt.topic)
			if ok != tt.wantOK {
				t.Fatalf("ParseCommandTopic(%q) ok = %v, want %v", tt.topic, ok, tt.wantOK)
			}
			if cmd != tt.wantCmd {
				t.Errorf("ParseCommandTopic(%q) = %q, want %q", tt.topic, cmd, tt.wantCmd)
			}
		})
	}
}
