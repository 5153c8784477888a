package asset

import "strings"

// Kind identifies the type of an asset.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindTexture
	KindAudio
	KindData
	KindText
	KindPrefab

	kindCount
)

var kindNames = [kindCount]string{
	KindUnknown: "unknown",
	KindTexture: "texture",
	KindAudio:   "audio",
	KindData:    "data",
	KindText:    "text",
	KindPrefab:  "prefab",
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if !k.Valid() && k != KindUnknown {
		return "unknown"
	}
	return kindNames[k]
}

// Valid reports whether k is a concrete, known kind.
func (k Kind) Valid() bool {
	return k > KindUnknown && k < kindCount
}

// ParseKind resolves a kind by name, case-insensitively.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k := KindTexture; k < kindCount; k++ {
		if kindNames[k] == s {
			return k, true
		}
	}
	return KindUnknown, false
}

// AllKinds lists every concrete kind in declaration order.
func AllKinds() []Kind {
	kinds := make([]Kind, 0, kindCount-1)
	for k := KindTexture; k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}
