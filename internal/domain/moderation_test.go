package domain

import "testing"

func TestEmailDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"jane@example.com", "example.com"},
		{"weird@user@example.com", "example.com"},
		{"nodomain", ""},
		{"", ""},
		{"trailing@", ""},
	}
	for _, tt := range tests {
		if got := EmailDomain(tt.in); got != tt.want {
			t.Errorf("EmailDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWebhookEventTerminal(t *testing.T) {
	for status, want := range map[EventStatus]bool{
		EventPending:   false,
		EventDelivered: true,
		EventFailed:    true,
	} {
		ev := WebhookEvent{Status: status}
		if ev.Terminal() != want {
			t.Errorf("Terminal() for %s = %v, want %v", status, ev.Terminal(), want)
		}
	}
}
