package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactIP masks the host portion of an IP address.
// "203.0.113.17" → "203.0.x.x"; IPv6 and anything unparseable become "x:x".
func RedactIP(ip string) string {
	if strings.Contains(ip, ":") {
		return "x:x"
	}
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return "x.x.x.x"
	}
	return parts[0] + "." + parts[1] + ".x.x"
}
