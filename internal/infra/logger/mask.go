package logger

import (
	"fmt"
	"net/netip"
	"strings"
)

const masked = "***"

// MaskEmail keeps up to three leading characters of the local part and the domain.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" {
		return masked
	}
	if runes := []rune(local); len(runes) > 3 {
		local = string(runes[:3])
	}
	return local + masked + "@" + domain
}

// MaskPhone keeps the dialing prefix and the last four digits.
func MaskPhone(phone string) string {
	if phone == "" {
		return ""
	}

	digits := strings.TrimPrefix(phone, "+")
	if isDigits(digits) && len(digits) >= 9 {
		head := min(3, len(digits)-8)
		return phone[:len(phone)-len(digits)+head] + masked + digits[len(digits)-4:]
	}
	if len(phone) > 4 {
		return masked + phone[len(phone)-4:]
	}
	return masked
}

// MaskIP keeps the network half of an address: two octets for IPv4, four groups for IPv6.
func MaskIP(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		if ip == "" {
			return ""
		}
		return masked
	}

	addr = addr.Unmap()
	if addr.Is4() {
		b := addr.As4()
		return fmt.Sprintf("%d.%d.*.*", b[0], b[1])
	}
	b := addr.As16()
	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x:%02x%02x:*:*:*:*", b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7])
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
