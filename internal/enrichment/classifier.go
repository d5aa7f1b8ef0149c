// Package enrichment assigns spending categories to transaction
// descriptions. Each distinct normalized description is sent to the model
// at most once; results live in the category cache.
package enrichment

import (
	"context"

	"github.com/dvloznov/money-mirror/internal/domain"
)

// Classifier labels a batch of descriptions. Implementations may return
// fewer results than descriptions; missing ones stay uncached.
type Classifier interface {
	Classify(ctx context.Context, descriptions []string) ([]domain.Classification, error)

	// ModelVersion is recorded on every cache entry the classifier produces.
	ModelVersion() string
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, descriptions []string) ([]domain.Classification, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, descriptions []string) ([]domain.Classification, error) {
	return f(ctx, descriptions)
}

// ModelVersion reports a fixed name for function classifiers.
func (f ClassifierFunc) ModelVersion() string {
	return "func"
}
