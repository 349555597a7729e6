package article

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/authz"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/cache"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/domain"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/repository"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/ws"
)

// Service orchestrates article creation, mutation and listing.
type Service struct {
	articles repository.ArticleRepository
	feed     cache.FeedCache
	hub      *ws.Hub
	logger   *slog.Logger
}

// New constructs a Service. The hub may be nil when no live comment
// stream is wanted (tests, CLI tooling).
func New(articles repository.ArticleRepository, feed cache.FeedCache, hub *ws.Hub, logger *slog.Logger) Service {
	if feed == nil {
		feed = cache.NewNoopCache()
	}
	return Service{articles: articles, feed: feed, hub: hub, logger: logger}
}

var (
	// ErrForbidden marks an authenticated but unauthorized mutation.
	ErrForbidden       = errors.New("not allowed")
	ErrTitleRequired   = errors.New("title is required")
	ErrBodyRequired    = errors.New("body is required")
	ErrCommentRequired = errors.New("comment is required")
)

// Create persists a new article authored by the acting user. Votes and
// comments start empty; the author name is copied from the user and
// never changes afterwards.
func (s Service) Create(ctx context.Context, acting *domain.User, title, body string) (*domain.Article, error) {
	if acting == nil {
		return nil, ErrForbidden
	}
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if body == "" {
		return nil, ErrBodyRequired
	}
	article := &domain.Article{
		ID:        uuid.NewString(),
		Title:     title,
		Author:    acting.Name,
		Body:      body,
		Votes:     []string{},
		Comments:  []string{},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.articles.CreateArticle(ctx, article); err != nil {
		return nil, err
	}
	s.feed.Invalidate(ctx)
	s.logger.Info("article created", "article_id", article.ID, "author", article.Author)
	return article, nil
}

// Edit replaces title and body of an existing article. Only the author
// may edit; the creation timestamp is untouched.
func (s Service) Edit(ctx context.Context, acting *domain.User, id, title, body string) (*domain.Article, error) {
	article, err := s.articles.GetArticleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanEdit(acting, article) {
		return nil, ErrForbidden
	}
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if body == "" {
		return nil, ErrBodyRequired
	}
	updated, err := s.articles.UpdateArticleContent(ctx, id, title, body)
	if err != nil {
		return nil, err
	}
	s.feed.Invalidate(ctx)
	s.logger.Info("article edited", "article_id", id, "author", acting.Name)
	return updated, nil
}

// Delete removes an article permanently. Only the author may delete.
func (s Service) Delete(ctx context.Context, acting *domain.User, id string) error {
	article, err := s.articles.GetArticleByID(ctx, id)
	if err != nil {
		return err
	}
	if !authz.CanDelete(acting, article) {
		return ErrForbidden
	}
	if err := s.articles.DeleteArticle(ctx, id); err != nil {
		return err
	}
	s.feed.Invalidate(ctx)
	s.logger.Info("article deleted", "article_id", id, "author", acting.Name)
	return nil
}

// Vote appends the acting user's name to the article's vote sequence.
// Votes are not deduplicated: voting twice records two entries.
func (s Service) Vote(ctx context.Context, acting *domain.User, id string) (*domain.Article, error) {
	if _, err := s.articles.GetArticleByID(ctx, id); err != nil {
		return nil, err
	}
	if !authz.CanVote(acting) {
		return nil, ErrForbidden
	}
	updated, err := s.articles.AppendVote(ctx, id, acting.Name)
	if err != nil {
		return nil, err
	}
	s.feed.Invalidate(ctx)
	return updated, nil
}

// Comment appends text verbatim to the article's comment sequence and
// broadcasts it to live watchers. HTML escaping is the render layer's
// responsibility.
func (s Service) Comment(ctx context.Context, acting *domain.User, id, text string) (*domain.Article, error) {
	if _, err := s.articles.GetArticleByID(ctx, id); err != nil {
		return nil, err
	}
	if !authz.CanComment(acting) {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrCommentRequired
	}
	updated, err := s.articles.AppendComment(ctx, id, text)
	if err != nil {
		return nil, err
	}
	s.feed.Invalidate(ctx)
	s.broadcastComment(id, text)
	return updated, nil
}

// List returns all articles, newest first, served from the feed cache
// when warm.
func (s Service) List(ctx context.Context) ([]domain.Article, error) {
	if articles, ok := s.feed.GetFeed(ctx); ok {
		return articles, nil
	}
	articles, err := s.articles.ListArticles(ctx)
	if err != nil {
		return nil, err
	}
	s.feed.SetFeed(ctx, articles)
	return articles, nil
}

// Get returns a single article by id.
func (s Service) Get(ctx context.Context, id string) (*domain.Article, error) {
	return s.articles.GetArticleByID(ctx, id)
}

// Hub returns the comment stream hub (useful for HTTP handlers).
func (s Service) Hub() *ws.Hub {
	return s.hub
}

func (s Service) broadcastComment(articleID, text string) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"article_id": articleID,
		"comment":    text,
		"posted_at":  time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		s.logger.Warn("failed to marshal comment payload", "error", err)
		return
	}
	s.hub.Broadcast(articleID, payload)
}
