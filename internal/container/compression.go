package container

import (
	"fmt"

	"github.com/klauspost/compress/flate"
)

// Compression selects the deflate level applied to the container entry.
type Compression uint8

const (
	// CompressionNone stores the entry without compression.
	CompressionNone Compression = iota
	// CompressionLow favors speed over ratio.
	CompressionLow
	// CompressionMedium uses the deflate default level.
	CompressionMedium
	// CompressionHigh favors ratio over speed.
	CompressionHigh
)

// String returns the configuration name of the level.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLow:
		return "low"
	case CompressionMedium:
		return "medium"
	case CompressionHigh:
		return "high"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a level from its configuration name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "low":
		return CompressionLow, nil
	case "medium":
		return CompressionMedium, nil
	case "high":
		return CompressionHigh, nil
	default:
		return 0, fmt.Errorf("unknown compression level: %q", name)
	}
}

// Enabled reports whether the level compresses at all.
func (c Compression) Enabled() bool {
	return c != CompressionNone
}

func (c Compression) flateLevel() int {
	switch c {
	case CompressionLow:
		return flate.BestSpeed
	case CompressionHigh:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}
