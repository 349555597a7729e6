package repository

import (
	"context"

	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	// GetUserByName returns the earliest created user with the given
	// name. Names are not unique; first-registered wins on collision.
	GetUserByName(ctx context.Context, name string) (*domain.User, error)
}

// ArticleRepository persists articles.
type ArticleRepository interface {
	CreateArticle(ctx context.Context, article *domain.Article) error
	GetArticleByID(ctx context.Context, id string) (*domain.Article, error)
	// ListArticles returns all articles, newest first.
	ListArticles(ctx context.Context) ([]domain.Article, error)
	UpdateArticleContent(ctx context.Context, id, title, body string) (*domain.Article, error)
	DeleteArticle(ctx context.Context, id string) error
	// AppendVote and AppendComment push onto the article's embedded
	// sequences in a single statement so concurrent appends cannot
	// lose updates.
	AppendVote(ctx context.Context, id, voter string) (*domain.Article, error)
	AppendComment(ctx context.Context, id, comment string) (*domain.Article, error)
}
