package domain

import "errors"

// Error taxonomy for a curation cycle. Fatal errors abort the cycle
// with no partial persistence; soft errors are absorbed into
// CycleResult.Errors.
var (
	// ErrAuthExpired: a collaborator rejected our credentials. Fatal,
	// surfaced for out-of-band notification.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrProviderUnavailable: catalog provider network failure or 5xx.
	// Fatal for the cycle, eligible for retry by the scheduler.
	ErrProviderUnavailable = errors.New("catalog provider unavailable")

	// ErrMetadataLookup: enrichment lookup failed. Soft; the affected
	// artist is excluded conservatively.
	ErrMetadataLookup = errors.New("metadata lookup failed")

	// ErrConfigInvalid: rejected before any network call.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrCycleInProgress: a cycle request arrived while another was
	// running. A no-op signal, not a failure.
	ErrCycleInProgress = errors.New("curation cycle already in progress")
)
