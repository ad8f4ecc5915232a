// Package security provides identifier validation, shell quoting and
// credential redaction used by every component that builds or logs
// command lines.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// tableNamePattern is intentionally stricter than what MySQL allows.
// Anything outside this set is rejected instead of escaped.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// InvalidIdentifierError is returned when a table or database name fails
// validation. It is never auto-sanitized; callers must reject the input.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier %q: only [A-Za-z0-9_] is allowed", e.Name)
}

// ValidateIdentifier checks a table or database name against the allowed
// character set and returns the name backtick-quoted for use in SQL.
func ValidateIdentifier(name string) (string, error) {
	if name == "" {
		return "", &InvalidIdentifierError{Name: name}
	}
	if !tableNamePattern.MatchString(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return "`" + name + "`", nil
}

// IsValidIdentifier reports whether name passes identifier validation.
func IsValidIdentifier(name string) bool {
	_, err := ValidateIdentifier(name)
	return err == nil
}

// QuoteShellArg quotes a single argument for a POSIX shell. The result is
// safe to interpolate into a command line regardless of the input content.
func QuoteShellArg(arg string) string {
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

var redactPatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	// Legacy mysql password arguments. Should not appear with
	// --defaults-file, but redact defensively anyway.
	{regexp.MustCompile(`-p'[^']*'`), "-p'***'"},
	{regexp.MustCompile(`-p"[^"]*"`), `-p"***"`},
	{regexp.MustCompile(`-p[^\s'"]+`), "-p***"},
	// sshpass environment values.
	{regexp.MustCompile(`SSHPASS='[^']*'`), "SSHPASS='***'"},
	{regexp.MustCompile(`SSHPASS="[^"]*"`), `SSHPASS="***"`},
	{regexp.MustCompile(`SSHPASS=\S+`), "SSHPASS=***"},
	// Mask defaults-file paths so logs do not disclose temp file names.
	{regexp.MustCompile(`--defaults-file=\S+`), "--defaults-file=***"},
	// Base64 payloads used to write defaults files on remote hosts.
	{regexp.MustCompile(`'[A-Za-z0-9+/=]{20,}' \| base64`), "'***' | base64"},
	// password=... lines inside defaults-file content.
	{regexp.MustCompile(`password=[^\s'"]+`), "password=***"},
}

// RedactCommand removes credential material from a command line before it
// is written to any log or error message.
func RedactCommand(command string) string {
	redacted := command
	for _, p := range redactPatterns {
		redacted = p.re.ReplaceAllString(redacted, p.replacement)
	}
	return redacted
}
