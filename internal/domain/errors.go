package domain

import (
	"fmt"
	"strings"
)

// ParseError reports a malformed statement file. Row is the 1-based data row
// and is zero when the problem is file-level (bad header, unknown format).
type ParseError struct {
	File   string
	Row    int
	Column string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "parse %s", e.File)
	if e.Row > 0 {
		fmt.Fprintf(&b, ": row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, ": column %q", e.Column)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// StoreError wraps any failure of the backing store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError returns nil when err is nil so callers can wrap unconditionally.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// ClassificationBatchError reports one failed classifier batch. The batch's
// descriptions stay uncached and are retried on the next run.
type ClassificationBatchError struct {
	Batch        int
	Descriptions []string
	Err          error
}

func (e *ClassificationBatchError) Error() string {
	return fmt.Sprintf("classification batch %d (%d descriptions): %v", e.Batch, len(e.Descriptions), e.Err)
}

func (e *ClassificationBatchError) Unwrap() error { return e.Err }

// ConfigError lists missing or invalid settings. It is fatal at startup.
type ConfigError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return "config: " + strings.Join(parts, "; ")
}
