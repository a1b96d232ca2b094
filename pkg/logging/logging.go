// Package logging wraps the standard library's log package with the
// key/value redaction the daemon needs before any sub-document path or
// value ever reaches a log line, following the teacher's plain
// log.Printf-based style (internal/server/server.go) rather than
// introducing a structured logging dependency the corpus doesn't use.
package logging

import (
	"log"
	"strconv"
	"strings"
)

// MaxLoggedValueLen bounds how much of a document value a log line may
// quote, since sub-document values can be arbitrarily large JSON blobs.
const MaxLoggedValueLen = 256

// RedactKey truncates and escapes a key for safe inclusion in a log line.
// Keys are user data; this keeps a runaway or adversarial key from
// blowing out log volume or injecting control characters.
func RedactKey(key string) string {
	if len(key) > 128 {
		key = key[:128] + "...(truncated)"
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '?'
		}
		return r
	}, key)
}

// RedactValue summarizes a value for logging rather than reproducing it:
// sub-document values routinely carry customer data the daemon must not
// echo into logs verbatim.
func RedactValue(value []byte) string {
	n := len(value)
	if n > MaxLoggedValueLen {
		return string(value[:MaxLoggedValueLen]) + "...(redacted, " + strconv.Itoa(n) + " bytes total)"
	}
	return string(value)
}

// Command logs one completed command at INFO-equivalent verbosity,
// mirroring the teacher's inline log.Printf call sites rather than a
// leveled logger — cachemir has no concept of log levels.
func Command(bucket, opcode, key string, status string) {
	log.Printf("bucket=%s opcode=%s key=%s status=%s", bucket, opcode, RedactKey(key), status)
}

// Errorf logs a formatted error, passed through verbatim from the
// teacher's error logging convention.
func Errorf(format string, args ...interface{}) {
	log.Printf(format, args...)
}
