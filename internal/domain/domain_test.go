package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParseInstitution(t *testing.T) {
	tests := []struct {
		input   string
		want    Institution
		wantErr bool
	}{
		{"amex", InstitutionAmex, false},
		{"  AMEX ", InstitutionAmex, false},
		{"Wealthsimple", InstitutionWealthsimple, false},
		{"barclays", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInstitution(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseInstitution(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseInstitution(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseError_Message(t *testing.T) {
	err := &ParseError{File: "jan.csv", Row: 3, Column: "Amount", Reason: "not a number"}
	msg := err.Error()
	for _, want := range []string{"jan.csv", "row 3", `"Amount"`, "not a number"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestErrorsAs(t *testing.T) {
	base := errors.New("boom")

	wrapped := fmt.Errorf("ParseAndLoad: %w", &StoreError{Op: "append raw", Err: base})
	var storeErr *StoreError
	if !errors.As(wrapped, &storeErr) {
		t.Fatal("expected StoreError through wrapping")
	}
	if !errors.Is(wrapped, base) {
		t.Error("expected StoreError to unwrap to base error")
	}

	batchErr := fmt.Errorf("classify: %w", &ClassificationBatchError{Batch: 2, Descriptions: []string{"A"}, Err: base})
	var cbe *ClassificationBatchError
	if !errors.As(batchErr, &cbe) || cbe.Batch != 2 {
		t.Errorf("expected ClassificationBatchError for batch 2, got %v", batchErr)
	}
}

func TestNewStoreError_Nil(t *testing.T) {
	if err := NewStoreError("noop", nil); err != nil {
		t.Errorf("NewStoreError(nil) = %v, want nil", err)
	}
}

func TestConfigError_Message(t *testing.T) {
	err := &ConfigError{Missing: []string{"GCP_PROJECT_ID", "GEMINI_API_KEY"}, Invalid: []string{"STORE_BACKEND"}}
	msg := err.Error()
	if !strings.Contains(msg, "GCP_PROJECT_ID, GEMINI_API_KEY") || !strings.Contains(msg, "invalid STORE_BACKEND") {
		t.Errorf("unexpected message: %s", msg)
	}
}
