package internal

import (
	"net"
	"strings"
	"unicode/utf8"
)

const (
	maxDeviceLabelBytes = 255
	unknownDevice       = "Unknown device"
)

// DeviceLabel trims a user agent into the descriptor stored on a session.
func DeviceLabel(userAgent string) string {
	label := strings.TrimSpace(userAgent)
	if label == "" {
		return unknownDevice
	}
	if len(label) <= maxDeviceLabelBytes {
		return label
	}
	label = label[:maxDeviceLabelBytes]
	for !utf8.ValidString(label) {
		label = label[:len(label)-1]
	}
	return label
}

// NormalizeIP strips a port and brackets from a remote address.
func NormalizeIP(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return strings.Trim(addr, "[]")
}
