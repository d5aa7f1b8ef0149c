package taxonomy

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/logger"
	"github.com/patrickmn/go-cache"
)

const activeKey = "active"

// Lister reads the stored taxonomy.
type Lister interface {
	ListActiveCategories(ctx context.Context) ([]domain.Category, error)
}

// Provider serves the active taxonomy from a short-lived read cache. When the
// store has no categories yet the built-in seed is used.
type Provider struct {
	lister Lister
	cache  *cache.Cache
	now    func() time.Time
}

// NewProvider creates a provider whose entries live for ttl.
func NewProvider(lister Lister, ttl time.Duration) *Provider {
	return &Provider{
		lister: lister,
		cache:  cache.New(ttl, 2*ttl),
		now:    time.Now,
	}
}

// Active returns the active categories.
func (p *Provider) Active(ctx context.Context) ([]domain.Category, error) {
	if cached, ok := p.cache.Get(activeKey); ok {
		return cached.([]domain.Category), nil
	}

	categories, err := p.lister.ListActiveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("Provider.Active: list categories: %w", err)
	}
	if len(categories) == 0 {
		log := logger.FromContext(ctx)
		log.Debug().Msg("No stored categories, using built-in taxonomy")
		categories, err = Seed(p.now())
		if err != nil {
			return nil, err
		}
	}

	p.cache.Set(activeKey, categories, cache.DefaultExpiration)
	return categories, nil
}

// Validator builds a validator over the active categories.
func (p *Provider) Validator(ctx context.Context) (*Validator, error) {
	categories, err := p.Active(ctx)
	if err != nil {
		return nil, err
	}
	return NewValidator(categories), nil
}

// Invalidate drops the cached taxonomy so the next read hits the store.
func (p *Provider) Invalidate() {
	p.cache.Flush()
}
