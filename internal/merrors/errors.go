// Package merrors defines the sentinel error kinds shared across mnemo's
// components, per the error handling policy: config errors surface,
// transient errors retry, malformed output degrades silently, invalid
// ids panic the caller's mistake rather than get swallowed.
package merrors

import "errors"

// Sentinel kinds. Use errors.Is against these, never string matching.
var (
	// ErrConfigMissing means a required credential or setting was absent.
	// Surfaced to the caller; retrying is pointless.
	ErrConfigMissing = errors.New("mnemo: required configuration missing")

	// ErrTransientNetwork covers timeouts, 5xx, and rate-limit responses
	// from an HTTP-based provider. Retried by the retry kernel.
	ErrTransientNetwork = errors.New("mnemo: transient network error")

	// ErrTransientWrite covers a vector store write conflict from
	// concurrent writers. Retried under the write profile.
	ErrTransientWrite = errors.New("mnemo: transient write conflict")

	// ErrMalformedLLMOutput means the extractor could not parse a
	// provider's response as the expected JSON shape. Never thrown to
	// callers — internal code logs and substitutes an empty result.
	ErrMalformedLLMOutput = errors.New("mnemo: malformed LLM output")

	// ErrInvalidID means a value failed the id allowlist. This is a
	// programmer error: it is never retried or swallowed.
	ErrInvalidID = errors.New("mnemo: invalid id")

	// ErrTelemetryWrite covers a failed ledger/activity-log/registry
	// persist. Always swallowed by the caller after logging.
	ErrTelemetryWrite = errors.New("mnemo: telemetry write failed")

	// ErrNotFound is returned by lookups that found nothing. Delete
	// treats it as success.
	ErrNotFound = errors.New("mnemo: not found")
)

// Transient reports whether err (or anything it wraps) should be retried
// by the retry kernel.
func Transient(err error) bool {
	return errors.Is(err, ErrTransientNetwork) || errors.Is(err, ErrTransientWrite)
}
