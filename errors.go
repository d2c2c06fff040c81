package smol

import "errors"

// Sentinel errors for the taxonomy in spec.md §7. Callers check kind with
// errors.Is; the core wraps a descriptive message around these with
// fmt.Errorf("...: %w", err), following this codebase's existing
// convention rather than a custom error-code enum.
var (
	// ErrInputInvalid covers NULL values, variable-width keys over cap,
	// too many INCLUDE columns, or a wrong key-attribute count. Fatal at
	// build; no index is written.
	ErrInputInvalid = errors.New("smol: invalid input")

	// ErrCapacity reports a single row exceeding page payload capacity.
	// Fatal at build.
	ErrCapacity = errors.New("smol: row exceeds page capacity")

	// ErrFormatViolation covers a magic/version mismatch on open, or a
	// decoded page whose declared nitems disagrees with its run
	// structure. The index is unusable once this occurs.
	ErrFormatViolation = errors.New("smol: format violation")

	// ErrUnsupported reports an attempted write path post-build
	// (insert/update/delete); not a bug, just not supported by an
	// immutable index.
	ErrUnsupported = errors.New("smol: unsupported operation")

	// ErrCancelled reports host-initiated cancellation observed by a scan.
	ErrCancelled = errors.New("smol: scan cancelled")
)
