package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/domain"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/repository"
	articlesvc "github.com/kingliujiaxin/Mutiple-user-blog-system/internal/service/article"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/service/auth"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/pkg/config"
)

// memStore is an in-memory implementation of the user and article
// repositories for handler tests.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	articles map[string]*domain.Article
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*domain.User),
		articles: make(map[string]*domain.Article),
	}
}

func (s *memStore) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *memStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *memStore) GetUserByName(_ context.Context, name string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []*domain.User
	for _, user := range s.users {
		if user.Name == name {
			matches = append(matches, user)
		}
	}
	if len(matches) == 0 {
		return nil, repository.ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	clone := *matches[0]
	return &clone, nil
}

func (s *memStore) CreateArticle(_ context.Context, article *domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *article
	s.articles[article.ID] = &clone
	return nil
}

func (s *memStore) GetArticleByID(_ context.Context, id string) (*domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	article, ok := s.articles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *article
	return &clone, nil
}

func (s *memStore) ListArticles(_ context.Context) ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Article, 0, len(s.articles))
	for _, article := range s.articles {
		out = append(out, *article)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memStore) UpdateArticleContent(_ context.Context, id, title, body string) (*domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	article, ok := s.articles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	article.Title = title
	article.Body = body
	clone := *article
	return &clone, nil
}

func (s *memStore) DeleteArticle(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.articles, id)
	return nil
}

func (s *memStore) AppendVote(_ context.Context, id, voter string) (*domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	article, ok := s.articles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	article.Votes = append(article.Votes, voter)
	clone := *article
	return &clone, nil
}

func (s *memStore) AppendComment(_ context.Context, id, comment string) (*domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	article, ok := s.articles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	article.Comments = append(article.Comments, comment)
	clone := *article
	return &clone, nil
}

func newTestRouter(t *testing.T) (*Router, *memStore) {
	t.Helper()
	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.AppConfig{
		SessionSecret: "test-secret",
		SessionTTL:    time.Hour,
	}
	authSvc := auth.New(store, logger, cfg)
	articleSvc := articlesvc.New(store, nil, nil, logger)
	return NewRouter(logger, authSvc, articleSvc, cfg, nil), store
}

// signup registers a user through the HTTP surface and returns the
// session cookie.
func signup(t *testing.T, router *Router, name, password string) *http.Cookie {
	t.Helper()
	form := url.Values{"name": {name}, "password": {password}, "confirm": {password}}
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("signup: expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == sessionCookieName && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatalf("signup did not set session cookie")
	return nil
}

func postForm(router *Router, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func get(router *Router, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func soleArticleID(t *testing.T, store *memStore) string {
	t.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.articles) != 1 {
		t.Fatalf("expected exactly one article, got %d", len(store.articles))
	}
	for id := range store.articles {
		return id
	}
	return ""
}

func TestSubmitRequiresSession(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postForm(router, "/submit", url.Values{"title": {"T"}, "body": {"B"}}, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Fatalf("expected redirect to /login, got %q", loc)
	}
}

func TestSubmitCreatesArticleAndFeedShowsIt(t *testing.T) {
	router, store := newTestRouter(t)
	cookie := signup(t, router, "alice", "pw1")

	rec := postForm(router, "/submit", url.Values{"title": {"Hello"}, "body": {"first post"}}, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/view" {
		t.Fatalf("expected redirect to /view, got %q", loc)
	}

	id := soleArticleID(t, store)
	article, err := store.GetArticleByID(context.Background(), id)
	if err != nil {
		t.Fatalf("stored article missing: %v", err)
	}
	if article.Author != "alice" {
		t.Fatalf("unexpected author: %q", article.Author)
	}

	feed := get(router, "/", nil)
	if feed.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", feed.Code)
	}
	if !strings.Contains(feed.Body.String(), "Hello") {
		t.Fatalf("feed does not show the article title")
	}
}

func TestSubmitEmptyFieldsRerendersForm(t *testing.T) {
	router, store := newTestRouter(t)
	cookie := signup(t, router, "alice", "pw1")

	rec := postForm(router, "/submit", url.Values{"title": {"   "}, "body": {"B"}}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "title is required") {
		t.Fatalf("expected inline validation message, got: %s", rec.Body.String())
	}
	store.mu.Lock()
	count := len(store.articles)
	store.mu.Unlock()
	if count != 0 {
		t.Fatalf("article created despite validation failure")
	}
}

func TestEditByNonAuthorIsForbidden(t *testing.T) {
	router, store := newTestRouter(t)
	aliceCookie := signup(t, router, "alice", "pw1")
	bobCookie := signup(t, router, "bob", "pw2")

	postForm(router, "/submit", url.Values{"title": {"T"}, "body": {"B"}}, aliceCookie)
	id := soleArticleID(t, store)

	rec := postForm(router, "/edit/"+id, url.Values{"title": {"X"}, "body": {"Y"}}, bobCookie)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	article, err := store.GetArticleByID(context.Background(), id)
	if err != nil {
		t.Fatalf("article missing: %v", err)
	}
	if article.Title != "T" || article.Body != "B" {
		t.Fatalf("article mutated by forbidden edit: %+v", article)
	}

	// The edit form is author-gated too.
	if form := get(router, "/edit/"+id, bobCookie); form.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on edit form, got %d", form.Code)
	}
}

func TestEditByAuthorUpdatesInPlace(t *testing.T) {
	router, store := newTestRouter(t)
	cookie := signup(t, router, "alice", "pw1")

	postForm(router, "/submit", url.Values{"title": {"T"}, "body": {"B"}}, cookie)
	id := soleArticleID(t, store)
	before, _ := store.GetArticleByID(context.Background(), id)

	rec := postForm(router, "/edit/"+id, url.Values{"title": {"T2"}, "body": {"B2"}}, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}

	after, err := store.GetArticleByID(context.Background(), id)
	if err != nil {
		t.Fatalf("article missing: %v", err)
	}
	if after.Title != "T2" || after.Body != "B2" {
		t.Fatalf("edit did not apply: %+v", after)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("creation timestamp changed on edit")
	}
}

func TestDeleteIsAuthorGatedAndSurfaced(t *testing.T) {
	router, store := newTestRouter(t)
	aliceCookie := signup(t, router, "alice", "pw1")
	bobCookie := signup(t, router, "bob", "pw2")

	postForm(router, "/submit", url.Values{"title": {"T"}, "body": {"B"}}, aliceCookie)
	id := soleArticleID(t, store)

	if rec := get(router, "/delete/"+id, bobCookie); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-author delete, got %d", rec.Code)
	}
	if rec := get(router, "/delete/"+id, aliceCookie); rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 for author delete, got %d", rec.Code)
	}
	if rec := get(router, "/delete/"+id, aliceCookie); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for deleted article, got %d", rec.Code)
	}
}

func TestVoteAppendsAndRequiresSession(t *testing.T) {
	router, store := newTestRouter(t)
	aliceCookie := signup(t, router, "alice", "pw1")

	postForm(router, "/submit", url.Values{"title": {"T"}, "body": {"B"}}, aliceCookie)
	id := soleArticleID(t, store)

	if rec := get(router, "/vote/"+id, nil); rec.Header().Get("Location") != "/login" {
		t.Fatalf("anonymous vote should redirect to /login")
	}

	for i := 0; i < 2; i++ {
		if rec := get(router, "/vote/"+id, aliceCookie); rec.Code != http.StatusSeeOther {
			t.Fatalf("vote %d: expected 303, got %d", i, rec.Code)
		}
	}
	article, _ := store.GetArticleByID(context.Background(), id)
	if len(article.Votes) != 2 {
		t.Fatalf("expected 2 vote entries, got %d", len(article.Votes))
	}
}

func TestCommentRequiresSessionAndText(t *testing.T) {
	router, store := newTestRouter(t)
	aliceCookie := signup(t, router, "alice", "pw1")

	postForm(router, "/submit", url.Values{"title": {"T"}, "body": {"B"}}, aliceCookie)
	id := soleArticleID(t, store)

	if rec := postForm(router, "/comments/"+id+"/", url.Values{"comment": {"hi"}}, nil); rec.Header().Get("Location") != "/login" {
		t.Fatalf("anonymous comment should redirect to /login")
	}
	if rec := postForm(router, "/comments/"+id+"/", url.Values{"comment": {"  "}}, aliceCookie); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty comment, got %d", rec.Code)
	}
	if rec := postForm(router, "/comments/"+id+"/", url.Values{"comment": {"nice"}}, aliceCookie); rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	article, _ := store.GetArticleByID(context.Background(), id)
	if len(article.Comments) != 1 || article.Comments[0] != "nice" {
		t.Fatalf("comment not stored: %+v", article.Comments)
	}
}

func TestLoginFailureRerendersWithMessage(t *testing.T) {
	router, _ := newTestRouter(t)
	signup(t, router, "alice", "pw1")

	rec := postForm(router, "/login", url.Values{"name": {"alice"}, "password": {"wrong"}}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid name or password") {
		t.Fatalf("expected inline error message, got: %s", rec.Body.String())
	}
}

func TestLoginThenSessionResolves(t *testing.T) {
	router, _ := newTestRouter(t)
	signup(t, router, "alice", "pw1")

	rec := postForm(router, "/login", url.Values{"name": {"alice"}, "password": {"pw1"}}, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("login did not set session cookie")
	}
	if !cookie.HttpOnly {
		t.Fatalf("session cookie should be HttpOnly")
	}

	feed := get(router, "/", cookie)
	if !strings.Contains(feed.Body.String(), "signed in as alice") {
		t.Fatalf("session did not resolve on the feed page")
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	router, _ := newTestRouter(t)
	cookie := signup(t, router, "alice", "pw1")

	rec := get(router, "/logout", cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("logout did not clear the session cookie")
	}
}

func TestForgedSessionCookieIsIgnored(t *testing.T) {
	router, store := newTestRouter(t)
	cookie := signup(t, router, "alice", "pw1")

	// A client editing the cookie value must not gain an identity.
	forged := &http.Cookie{Name: sessionCookieName, Value: cookie.Value + "tampered"}
	rec := postForm(router, "/submit", url.Values{"title": {"T"}, "body": {"B"}}, forged)
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Fatalf("forged cookie accepted; redirect was %q", loc)
	}
	store.mu.Lock()
	count := len(store.articles)
	store.mu.Unlock()
	if count != 0 {
		t.Fatalf("forged session created an article")
	}
}

func TestHealthzReportsDatabaseState(t *testing.T) {
	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.AppConfig{SessionSecret: "s", SessionTTL: time.Hour}
	authSvc := auth.New(store, logger, cfg)
	articleSvc := articlesvc.New(store, nil, nil, logger)

	healthy := NewRouter(logger, authSvc, articleSvc, cfg, func(context.Context) error { return nil })
	if rec := get(healthy, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	down := NewRouter(logger, authSvc, articleSvc, cfg, func(context.Context) error { return context.DeadlineExceeded })
	rec := get(down, "/healthz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "degraded") {
		t.Fatalf("expected degraded status in body: %s", rec.Body.String())
	}
}
