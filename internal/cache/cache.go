// Package cache provides a read-through cache for the article feed.
// The feed is the hottest read path and tolerates brief staleness;
// every article mutation invalidates it.
package cache

import (
	"context"

	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/domain"
)

// FeedCache stores the rendered article feed between mutations.
type FeedCache interface {
	// GetFeed returns the cached feed and whether it was present.
	GetFeed(ctx context.Context) ([]domain.Article, bool)
	SetFeed(ctx context.Context, articles []domain.Article)
	Invalidate(ctx context.Context)
	Close()
}

type noopCache struct{}

// NewNoopCache returns a cache that never stores anything. Used when no
// Redis address is configured.
func NewNoopCache() FeedCache {
	return noopCache{}
}

func (noopCache) GetFeed(context.Context) ([]domain.Article, bool) { return nil, false }

func (noopCache) SetFeed(context.Context, []domain.Article) {}

func (noopCache) Invalidate(context.Context) {}

func (noopCache) Close() {}
