package enum

// Type is the book side of an event.
type Type uint8

const (
	TypeUnspecified Type = iota
	TypeAsk
	TypeBid
	_type_end
)

func (t Type) IsAvailable() bool {
	return t < _type_end
}

// IsSide reports whether t names a book side.
func (t Type) IsSide() bool {
	return t == TypeAsk || t == TypeBid
}

func (t Type) String() string {
	switch t {
	case TypeUnspecified:
		return "unspecified"
	case TypeAsk:
		return "ask"
	case TypeBid:
		return "bid"
	default:
		return "unknown"
	}
}
