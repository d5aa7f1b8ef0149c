package pipeline

import (
	"errors"
	"fmt"

	"github.com/dvloznov/money-mirror/internal/domain"
)

// ErrInvalidRequest marks requests rejected before any work starts.
var ErrInvalidRequest = errors.New("invalid request")

// Request is one ingestion run over a set of statement files of a single
// institution.
type Request struct {
	Institution    domain.Institution
	FilePaths      []string
	ForceReprocess bool
}

// Validate checks the request shape.
func (r Request) Validate() error {
	if !r.Institution.Valid() {
		return fmt.Errorf("%w: unsupported institution %q", ErrInvalidRequest, r.Institution)
	}
	if len(r.FilePaths) == 0 {
		return fmt.Errorf("%w: file_paths must not be empty", ErrInvalidRequest)
	}
	for i, p := range r.FilePaths {
		if p == "" {
			return fmt.Errorf("%w: file_paths[%d] is empty", ErrInvalidRequest, i)
		}
	}
	return nil
}

// Result holds the counters reported for a run.
type Result struct {
	FilesProcessed        int      `json:"files_processed"`
	FilesSkipped          int      `json:"files_skipped"`
	FilesFailed           int      `json:"files_failed"`
	RowsInserted          int      `json:"rows_inserted"`
	NewCategories         int      `json:"new_categories"`
	FailedBatches         int      `json:"failed_batches"`
	DashboardRows         int      `json:"dashboard_rows"`
	ProcessingTimeSeconds float64  `json:"processing_time_seconds"`
	Warnings              []string `json:"warnings,omitempty"`
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// statementFile is one requested file as it moves through the steps.
type statementFile struct {
	Path    string
	Name    string
	Content []byte
	Hash    string

	// Skip is set when the file's content was already loaded.
	Skip bool
	// Err is set when the file could not be fetched or parsed.
	Err error
}
