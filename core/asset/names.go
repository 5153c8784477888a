package asset

import (
	"path"
	"strings"
)

// NormalizePath converts backslashes to slashes, collapses slash runs and trims
// leading and trailing slashes. Every path comparison in the engine goes through
// this function.
func NormalizePath(p string) string {
	return strings.Trim(collapseSlashes(p), "/")
}

func collapseSlashes(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")

	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// PathKey is the comparison form of a path: normalized and lowercased.
func PathKey(p string) string {
	return strings.ToLower(NormalizePath(p))
}

// PrefixKey is the comparison form of a name or path prefix. Unlike PathKey it
// keeps a trailing slash, so "Textures/" only matches inside that directory.
func PrefixKey(prefix string) string {
	return strings.ToLower(strings.TrimLeft(collapseSlashes(prefix), "/"))
}

// LogicalName derives the asset name from a root-relative path: the normalized
// path with its extension stripped.
func LogicalName(rel string) string {
	n := NormalizePath(rel)
	ext := path.Ext(n)
	if ext == "" || strings.HasSuffix(n, "/"+ext) || n == ext {
		return n
	}
	return strings.TrimSuffix(n, ext)
}

// Ext returns the lowercased extension of p, including the leading dot.
func Ext(p string) string {
	return strings.ToLower(path.Ext(NormalizePath(p)))
}

func nameKey(name string) string {
	return strings.ToLower(NormalizePath(name))
}
