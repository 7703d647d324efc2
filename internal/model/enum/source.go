package enum

import "strings"

// Source describes which stream produced an event.
type Source uint8

const (
	_source_beg Source = iota
	SourceDepth
	SourceTrade
	_source_end
)

func (s Source) IsAvailable() bool {
	return s > _source_beg && s < _source_end
}

func (s Source) String() string {
	switch s {
	case SourceDepth:
		return "depth"
	case SourceTrade:
		return "trade"
	default:
		return "unknown"
	}
}

// ParseSource maps a configured message kind to its Source.
func ParseSource(kind string) Source {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "depth":
		return SourceDepth
	case "trade":
		return SourceTrade
	default:
		return _source_beg
	}
}
