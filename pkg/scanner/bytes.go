package scanner

import "math"

const maxUintPrefix = (math.MaxUint64 - 9) / 10

// ScanUintField returns the unsigned integer value of the first occurrence of key.
func ScanUintField(payload []byte, key []byte) (uint64, bool) {
	i, ok := valueStart(payload, key)
	if !ok || payload[i] < '0' || payload[i] > '9' {
		return 0, false
	}
	var v uint64
	for i < len(payload) && payload[i] >= '0' && payload[i] <= '9' {
		if v > maxUintPrefix {
			return 0, false
		}
		v = v*10 + uint64(payload[i]-'0')
		i++
	}
	return v, true
}

func valueStart(payload []byte, key []byte) (int, bool) {
	idx := IndexOf(payload, key)
	if idx < 0 {
		return 0, false
	}
	i := idx + len(key)
	for i < len(payload) && payload[i] != ':' {
		i++
	}
	if i >= len(payload) {
		return 0, false
	}
	i++
	for i < len(payload) && IsSpace(payload[i]) {
		i++
	}
	if i >= len(payload) {
		return 0, false
	}
	return i, true
}

func IndexOf(payload []byte, key []byte) int {
	if len(key) == 0 || len(payload) < len(key) {
		return -1
	}
outer:
	for i := 0; i <= len(payload)-len(key); i++ {
		for j := 0; j < len(key); j++ {
			if payload[i+j] != key[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

func IsSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

