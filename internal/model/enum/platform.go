package enum

import "strings"

// Platform is a venue the router can ingest from.
type Platform uint8

const (
	_platform_beg Platform = iota
	PlatformBinance
	_platform_end
)

func (p Platform) IsAvailable() bool {
	return p > _platform_beg && p < _platform_end
}

func (p Platform) String() string {
	switch p {
	case PlatformBinance:
		return "binance"
	default:
		return "unknown"
	}
}

// ParsePlatform maps a configured venue name to its Platform.
func ParsePlatform(name string) Platform {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "binance":
		return PlatformBinance
	default:
		return _platform_beg
	}
}
