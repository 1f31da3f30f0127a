package utility

import (
	"strings"

	"github.com/klauspost/crc32"
)

// Checksum returns the IEEE crc32 of data.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// SplitTrim splits s by sep, trims every part and drops empty ones.
func SplitTrim(s string, sep string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
