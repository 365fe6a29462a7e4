package logger

import "testing"

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"john.doe@example.com", "jo***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"a@example.com", "***@example.com"},
		{"not-an-email", "***@***"},
		{"two@at@signs", "***@***"},
		{"", "***@***"},
	}
	for _, tt := range tests {
		if got := RedactEmail(tt.in); got != tt.want {
			t.Errorf("RedactEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"203.0.113.17", "203.0.x.x"},
		{"10.0.0.1", "10.0.x.x"},
		{"2001:db8::1", "x:x"},
		{"garbage", "x.x.x.x"},
		{"", "x.x.x.x"},
	}
	for _, tt := range tests {
		if got := RedactIP(tt.in); got != tt.want {
			t.Errorf("RedactIP(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactValue(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"email key", "author_email", "jane.doe@example.com", "ja***@example.com"},
		{"ip key", "ip", "203.0.113.17", "203.0.x.x"},
		{"suffixed ip key", "author_ip", "203.0.113.17", "203.0.x.x"},
		{"embedded email", "reason", "reported by jane.doe@example.com yesterday", "reported by ja***@example.com yesterday"},
		{"plain value untouched", "comment_id", "c-12345", "c-12345"},
		{"author name untouched", "author_name", "Jane Ipsum", "Jane Ipsum"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactValue(tt.key, tt.val); got != tt.want {
				t.Errorf("redactValue(%q, %q) = %q, want %q", tt.key, tt.val, got, tt.want)
			}
		})
	}
}
