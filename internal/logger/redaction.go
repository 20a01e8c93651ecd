package logger

import (
	"io"
	"regexp"
	"sync"
)

const redacted = "[REDACTED]"

// Redactor masks credentials before log lines reach their sink
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
}

// NewRedactor creates a redactor with the default credential patterns
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// Bearer tokens
			regexp.MustCompile(`Bearer\s+[A-Za-z0-9._~+/=-]+`),

			// JWTs
			regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`),

			// JSON fields holding credentials
			regexp.MustCompile(`"(access_token|token|password|password_confirmation|secret|shared_secret|signature)"\s*:\s*"[^"]*"`),

			// key=value and key: value forms
			regexp.MustCompile(`(?i)(password|secret|token)[\s:=]+[^\s",]{8,}`),
		},
	}
}

// AddPattern adds a custom redaction pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.patterns = append(r.patterns, re)
	r.mu.Unlock()
	return nil
}

// AddSecret masks every literal occurrence of value. Empty values are ignored.
func (r *Redactor) AddSecret(value string) {
	if value == "" {
		return
	}
	re := regexp.MustCompile(regexp.QuoteMeta(value))
	r.mu.Lock()
	r.patterns = append(r.patterns, re)
	r.mu.Unlock()
}

// Redact masks every match in s
func (r *Redactor) Redact(s string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := s
	for _, pattern := range r.patterns {
		result = pattern.ReplaceAllStringFunc(result, mask(pattern))
	}
	return result
}

// mask keeps the JSON key of a field match so lines stay parseable
func mask(pattern *regexp.Regexp) func(string) string {
	return func(match string) string {
		sub := pattern.FindStringSubmatch(match)
		if len(sub) > 1 && len(match) > 0 && match[0] == '"' {
			return `"` + sub[1] + `":"` + redacted + `"`
		}
		return redacted
	}
}

// Wrap wraps an io.Writer to redact sensitive information
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

// redactingWriter is an io.Writer that redacts sensitive information
type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success so zerolog does not treat the shorter
// redacted line as a short write
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
