// Package security keeps secrets out of log output.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// Redactor replaces secret values in strings with RedactPlaceholder. It
// matches regex patterns for secrets that appear in known shapes and
// literal values registered while they are in use. All methods are safe
// for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	// literals counts live registrations so that concurrent firings sharing
	// one credential keep it redacted until the last one releases it.
	literals map[string]int
}

// NewRedactor creates a Redactor pre-loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: DefaultPatterns(),
		literals: make(map[string]int),
	}
}

// AddPattern adds a compiled regex pattern to the redactor.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

// Track registers secret as a literal until the returned release func is
// called. Release is idempotent. Empty secrets are ignored.
func (r *Redactor) Track(secret string) (release func()) {
	if secret == "" {
		return func() {}
	}

	r.mu.Lock()
	if r.literals == nil {
		r.literals = make(map[string]int)
	}
	r.literals[secret]++
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.literals[secret] <= 1 {
				delete(r.literals, secret)
				return
			}
			r.literals[secret]--
		})
	}
}

// Tracked reports how many literals are currently registered.
func (r *Redactor) Tracked() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.literals)
}

// Redact replaces all known secret patterns and literal values in s
// with RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := make([]string, 0, len(r.literals))
	for lit := range r.literals {
		literals = append(literals, lit)
	}
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, "${1}"+RedactPlaceholder)
	}
	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}
	return s
}

// DefaultPatterns returns patterns for credentials that show up embedded in
// URLs, headers or key/value text. The first capture group is kept.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// password=..., passwd: ... in query strings and text
		regexp.MustCompile(`(?i)((?:password|passwd|pwd)\s*[=:]\s*)[^\s&,;"']+`),
		// "password":"..." in JSON bodies
		regexp.MustCompile(`(?i)("password"\s*:\s*")[^"]*`),
		// user:pass@ in URLs
		regexp.MustCompile(`(://[^/:@\s]+:)[^@\s/]+`),
		// Authorization: Bearer ...
		regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`),
	}
}
