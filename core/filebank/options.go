package filebank

import (
	"strings"

	"go.uber.org/zap"
)

// DefaultQueueSize is the default capacity of the mark queue.
const DefaultQueueSize = 4096

// DefaultSourceExtensions lists the code file extensions that never become assets.
var DefaultSourceExtensions = []string{".go"}

// Option customizes a Bank.
type Option func(*Bank)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bank) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithQueueSize sets the capacity of the mark queue.
func WithQueueSize(n int) Option {
	return func(b *Bank) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithSourceExtensions replaces the list of code file extensions filtered out at
// the notification boundary.
func WithSourceExtensions(exts ...string) Option {
	return func(b *Bank) {
		b.sourceExts = make(map[string]struct{}, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			b.sourceExts[ext] = struct{}{}
		}
	}
}
