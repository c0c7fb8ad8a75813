package util

import "strings"

// MaskEmail hides most of the local part of an address for log output.
// "ana.torres@example.com" becomes "an***@example.com".
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	local := email[:at]
	if len(local) <= 2 {
		return local[:1] + "***" + email[at:]
	}
	return local[:2] + "***" + email[at:]
}

// MaskIP hides the host portion of an address for log output. IPv4 keeps the
// first two octets; anything else keeps the first hextet.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}
	if parts := strings.Split(ip, "."); len(parts) == 4 {
		return parts[0] + "." + parts[1] + ".x.x"
	}
	if i := strings.IndexByte(ip, ':'); i > 0 {
		return ip[:i] + "::x"
	}
	return "***"
}
