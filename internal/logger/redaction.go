package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

type redactionRule struct {
	pattern *regexp.Regexp
	// replacement keeps the key of key=value matches readable
	replacement string
}

// Redactor masks credentials in log output
type Redactor struct {
	rules []redactionRule
}

// NewRedactor creates a redactor for the credentials IAttom handles
func NewRedactor() *Redactor {
	return &Redactor{
		rules: []redactionRule{
			// Anthropic before OpenAI so the longer prefix wins
			{pattern: regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`), replacement: redacted},
			{pattern: regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`), replacement: redacted},

			// Meta Graph API access tokens
			{pattern: regexp.MustCompile(`EAA[a-zA-Z0-9]{20,}`), replacement: redacted},

			{pattern: regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`), replacement: "Bearer " + redacted},

			{pattern: regexp.MustCompile(`(?i)(access_token|verify_token|app_secret|api_key)(["\s:=]+)[^\s"&,]+`), replacement: "${1}${2}" + redacted},
			{pattern: regexp.MustCompile(`(?i)(password|pwd|secret)(["\s:=]+)[^\s"&,]+`), replacement: "${1}${2}" + redacted},
			{pattern: regexp.MustCompile(`(?i)(token)(["\s:=]+)[a-zA-Z0-9._-]{20,}`), replacement: "${1}${2}" + redacted},

			// Payload signatures
			{pattern: regexp.MustCompile(`sha256=[a-f0-9]{64}`), replacement: "sha256=" + redacted},
		},
	}
}

// AddPattern adds a custom redaction pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, redactionRule{pattern: re, replacement: redacted})
	return nil
}

// Redact masks every credential in s
func (r *Redactor) Redact(s string) string {
	for _, rule := range r.rules {
		s = rule.pattern.ReplaceAllString(s, rule.replacement)
	}
	return s
}

// Wrap returns a writer that redacts before writing to w
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{writer: w, redactor: r}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success so callers do not treat the shorter
// redacted output as a short write.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
