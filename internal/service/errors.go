package service

import (
	"errors"
	"fmt"
)

// Validation errors are rejected before any side effect.
var (
	// ErrNoTags is returned when ingestion is attempted with zero
	// normalized tags.
	ErrNoTags = errors.New("ingestion requires at least one normalized tag")

	// ErrEmptyQuery is returned when a search query normalizes to zero tags.
	ErrEmptyQuery = errors.New("search requires at least one normalized tag")

	// ErrUnsupportedExt is returned when the file extension maps to
	// neither asset kind.
	ErrUnsupportedExt = errors.New("unsupported file extension")
)

// ErrQuotaExceeded signals that committing the new bytes would blow the
// storage budget. It is retryable: a background GC pass has been scheduled
// and the caller should retry the ingestion after it completes.
var ErrQuotaExceeded = errors.New("storage quota exceeded, retry after garbage collection")

// QuotaError carries the numbers behind an ErrQuotaExceeded.
type QuotaError struct {
	UsageBytes      int64
	AdditionalBytes int64
	BudgetBytes     int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("storage quota exceeded: usage %d + %d > budget %d",
		e.UsageBytes, e.AdditionalBytes, e.BudgetBytes)
}

// Unwrap makes errors.Is(err, ErrQuotaExceeded) hold.
func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}

// ChecksumError is the integrity failure raised when a copied file does not
// re-hash to the source digest. The destination has already been deleted
// when this error surfaces.
type ChecksumError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// FormatMismatchError is the integrity failure raised when a file's
// extension disagrees with its probed format.
type FormatMismatchError struct {
	Path   string
	Ext    string
	Format string
}

func (e *FormatMismatchError) Error() string {
	return fmt.Sprintf("extension %q does not match detected format %q for %s", e.Ext, e.Format, e.Path)
}
