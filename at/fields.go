package at

import (
	"strconv"
	"strings"
)

// ParseRSSI extracts the signal strength reported after "RSSI " in a
// modem response.
func ParseRSSI(resp string) (int, bool) {
	return intAfter(resp, FieldRSSI)
}

// ParsePort extracts the downlink port reported after "PORT: ".
func ParsePort(resp string) (int, bool) {
	return intAfter(resp, FieldPort)
}

// FindPayload returns the text that follows the opening quote of the
// downlink payload field. The hex run is not validated here; DecodeRun
// stops at the closing quote.
func FindPayload(resp string) (string, bool) {
	i := strings.Index(resp, FieldPayload)
	if i < 0 {
		return "", false
	}
	return resp[i+len(FieldPayload):], true
}

// ParseVersion extracts a firmware version such as "4.0.11" from an
// AT+VER response. The version starts at the first digit and runs to the
// end of that line.
func ParseVersion(resp string) string {
	i := strings.IndexAny(resp, "0123456789")
	if i < 0 {
		return ""
	}
	v := resp[i:]
	if j := strings.IndexAny(v, "\r\n"); j >= 0 {
		v = v[:j]
	}
	return v
}

// intAfter parses the signed decimal integer that follows the first
// occurrence of prefix. Leading whitespace is skipped.
func intAfter(s, prefix string) (int, bool) {
	i := strings.Index(s, prefix)
	if i < 0 {
		return 0, false
	}
	s = strings.TrimLeft(s[i+len(prefix):], " \t\r\n")

	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}

	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return v, true
}
