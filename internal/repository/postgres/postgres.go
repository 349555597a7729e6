package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/domain"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository    = (*Repository)(nil)
	_ repository.ArticleRepository = (*Repository)(nil)
)

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Name, user.PasswordHash, user.CreatedAt)
	return err
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, name, password_hash, created_at FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByName fetches the earliest created user with the given name.
// Names carry no uniqueness constraint; ordering keeps lookups
// deterministic when duplicates exist.
func (r *Repository) GetUserByName(ctx context.Context, name string) (*domain.User, error) {
	const query = `SELECT id, name, password_hash, created_at FROM users
		WHERE name = $1 ORDER BY created_at ASC LIMIT 1`
	row := r.pool.QueryRow(ctx, query, name)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateArticle inserts an article.
func (r *Repository) CreateArticle(ctx context.Context, article *domain.Article) error {
	const query = `INSERT INTO articles (id, title, author, body, votes, comments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		article.ID, article.Title, article.Author, article.Body,
		article.Votes, article.Comments, article.CreatedAt)
	return err
}

// GetArticleByID retrieves an article by identifier.
func (r *Repository) GetArticleByID(ctx context.Context, id string) (*domain.Article, error) {
	const query = `SELECT id, title, author, body, votes, comments, created_at
		FROM articles WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanArticle(row)
}

// ListArticles returns all articles, newest first.
func (r *Repository) ListArticles(ctx context.Context) ([]domain.Article, error) {
	const query = `SELECT id, title, author, body, votes, comments, created_at
		FROM articles ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles := make([]domain.Article, 0)
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Author, &a.Body, &a.Votes, &a.Comments, &a.CreatedAt); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// UpdateArticleContent replaces title and body in place. Author and
// created_at never change after creation.
func (r *Repository) UpdateArticleContent(ctx context.Context, id, title, body string) (*domain.Article, error) {
	const query = `UPDATE articles SET title = $2, body = $3 WHERE id = $1
		RETURNING id, title, author, body, votes, comments, created_at`
	row := r.pool.QueryRow(ctx, query, id, title, body)
	return scanArticle(row)
}

// DeleteArticle removes an article permanently.
func (r *Repository) DeleteArticle(ctx context.Context, id string) error {
	const query = `DELETE FROM articles WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AppendVote appends a voter name to the article's vote sequence. The
// append happens inside one UPDATE so concurrent votes cannot clobber
// each other.
func (r *Repository) AppendVote(ctx context.Context, id, voter string) (*domain.Article, error) {
	const query = `UPDATE articles SET votes = array_append(votes, $2) WHERE id = $1
		RETURNING id, title, author, body, votes, comments, created_at`
	row := r.pool.QueryRow(ctx, query, id, voter)
	return scanArticle(row)
}

// AppendComment appends a comment to the article's comment sequence.
func (r *Repository) AppendComment(ctx context.Context, id, comment string) (*domain.Article, error) {
	const query = `UPDATE articles SET comments = array_append(comments, $2) WHERE id = $1
		RETURNING id, title, author, body, votes, comments, created_at`
	row := r.pool.QueryRow(ctx, query, id, comment)
	return scanArticle(row)
}

func scanArticle(row pgx.Row) (*domain.Article, error) {
	var a domain.Article
	if err := row.Scan(&a.ID, &a.Title, &a.Author, &a.Body, &a.Votes, &a.Comments, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if a.Votes == nil {
		a.Votes = []string{}
	}
	if a.Comments == nil {
		a.Comments = []string{}
	}
	return &a, nil
}
