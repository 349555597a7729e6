package httpx

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/authz"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/repository"
	articlesvc "github.com/kingliujiaxin/Mutiple-user-blog-system/internal/service/article"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/service/auth"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/ws"
	"github.com/kingliujiaxin/Mutiple-user-blog-system/pkg/config"
)

const healthCheckTimeout = 2 * time.Second

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *chi.Mux
	logger   *slog.Logger
	auth     auth.Service
	articles articlesvc.Service
	render   *Renderer
	upgrader websocket.Upgrader
	cfg      config.AppConfig
	dbHealth func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
}

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, articleSvc articlesvc.Service, cfg config.AppConfig, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:      chi.NewRouter(),
		logger:   logger,
		auth:     authSvc,
		articles: articleSvc,
		render:   NewRenderer(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cfg:      cfg,
		dbHealth: dbHealth,
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to the underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) register() {
	r.mux.Use(chimw.RequestID)
	r.mux.Use(chimw.Recoverer)
	r.mux.Use(r.withUser)
	r.mux.Use(r.audit)

	r.mux.Get("/", r.handleView)
	r.mux.Get("/view", r.handleView)
	r.mux.Get("/submit", r.handleSubmitForm)
	r.mux.Post("/submit", r.handleSubmit)
	r.mux.Get("/edit/{id}", r.handleEditForm)
	r.mux.Post("/edit/{id}", r.handleEdit)
	r.mux.Get("/delete/{id}", r.handleDelete)
	r.mux.Get("/vote/{id}", r.handleVote)
	r.mux.Post("/comments/{id}/", r.handleComment)
	r.mux.Get("/signup", r.handleSignupForm)
	r.mux.Post("/signup", r.handleSignup)
	r.mux.Get("/login", r.handleLoginForm)
	r.mux.Post("/login", r.handleLogin)
	r.mux.Get("/logout", r.handleLogout)
	r.mux.Get("/ws/comments", r.handleCommentsWS)
	r.mux.Get("/healthz", r.handleHealthz)
	r.mux.Get("/metrics", promhttp.Handler().ServeHTTP)
}

func (r *Router) handleView(w http.ResponseWriter, req *http.Request) {
	r.renderFeed(w, req, http.StatusOK, "")
}

// renderFeed renders the article list page, optionally with an inline
// error message (used when a comment fails validation).
func (r *Router) renderFeed(w http.ResponseWriter, req *http.Request, status int, message string) {
	articles, err := r.articles.List(req.Context())
	if err != nil {
		r.logger.Error("listing articles failed", "error", err)
		http.Error(w, "could not load articles", http.StatusInternalServerError)
		return
	}
	data := viewData{Error: message}
	if user := userFromContext(req.Context()); user != nil {
		data.UserName = user.Name
		data.LoggedIn = true
	}
	data.Articles = make([]articleView, 0, len(articles))
	for _, article := range articles {
		data.Articles = append(data.Articles, r.render.articleView(article))
	}
	if err := r.render.page(w, status, "view.html", data); err != nil {
		r.logger.Error("rendering article list failed", "error", err)
	}
}

func (r *Router) handleSubmitForm(w http.ResponseWriter, req *http.Request) {
	r.renderForm(w, req, http.StatusOK, "write.html", formData{})
}

func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) {
	user := r.requireUser(w, req)
	if user == nil {
		return
	}
	title := req.FormValue("title")
	body := req.FormValue("body")
	if _, err := r.articles.Create(req.Context(), user, title, body); err != nil {
		if errors.Is(err, articlesvc.ErrTitleRequired) || errors.Is(err, articlesvc.ErrBodyRequired) {
			r.renderForm(w, req, http.StatusBadRequest, "write.html", formData{
				Title: title,
				Body:  body,
				Error: err.Error(),
			})
			return
		}
		r.logger.Error("creating article failed", "error", err)
		http.Error(w, "could not create article", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, req, "/view", http.StatusSeeOther)
}

func (r *Router) handleEditForm(w http.ResponseWriter, req *http.Request) {
	user := r.requireUser(w, req)
	if user == nil {
		return
	}
	article, err := r.articles.Get(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		r.serviceError(w, err)
		return
	}
	if !authz.CanEdit(user, article) {
		http.Error(w, "only the author may edit this article", http.StatusForbidden)
		return
	}
	r.renderForm(w, req, http.StatusOK, "rewrite.html", formData{
		ArticleID: article.ID,
		Title:     article.Title,
		Body:      article.Body,
	})
}

func (r *Router) handleEdit(w http.ResponseWriter, req *http.Request) {
	user := r.requireUser(w, req)
	if user == nil {
		return
	}
	id := chi.URLParam(req, "id")
	title := req.FormValue("title")
	body := req.FormValue("body")
	if _, err := r.articles.Edit(req.Context(), user, id, title, body); err != nil {
		if errors.Is(err, articlesvc.ErrTitleRequired) || errors.Is(err, articlesvc.ErrBodyRequired) {
			r.renderForm(w, req, http.StatusBadRequest, "rewrite.html", formData{
				ArticleID: id,
				Title:     title,
				Body:      body,
				Error:     err.Error(),
			})
			return
		}
		r.serviceError(w, err)
		return
	}
	http.Redirect(w, req, "/view", http.StatusSeeOther)
}

func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) {
	user := r.requireUser(w, req)
	if user == nil {
		return
	}
	if err := r.articles.Delete(req.Context(), user, chi.URLParam(req, "id")); err != nil {
		r.serviceError(w, err)
		return
	}
	http.Redirect(w, req, "/", http.StatusSeeOther)
}

func (r *Router) handleVote(w http.ResponseWriter, req *http.Request) {
	user := r.requireUser(w, req)
	if user == nil {
		return
	}
	if _, err := r.articles.Vote(req.Context(), user, chi.URLParam(req, "id")); err != nil {
		r.serviceError(w, err)
		return
	}
	http.Redirect(w, req, "/", http.StatusSeeOther)
}

func (r *Router) handleComment(w http.ResponseWriter, req *http.Request) {
	user := r.requireUser(w, req)
	if user == nil {
		return
	}
	id := chi.URLParam(req, "id")
	text := req.FormValue("comment")
	if _, err := r.articles.Comment(req.Context(), user, id, text); err != nil {
		if errors.Is(err, articlesvc.ErrCommentRequired) {
			r.renderFeed(w, req, http.StatusBadRequest, err.Error())
			return
		}
		r.serviceError(w, err)
		return
	}
	http.Redirect(w, req, "/", http.StatusSeeOther)
}

func (r *Router) handleSignupForm(w http.ResponseWriter, req *http.Request) {
	r.renderForm(w, req, http.StatusOK, "signup.html", formData{})
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	name := req.FormValue("name")
	password := req.FormValue("password")
	confirm := req.FormValue("confirm")
	_, token, err := r.auth.Signup(req.Context(), name, password, confirm)
	if err != nil {
		if errors.Is(err, auth.ErrNameRequired) || errors.Is(err, auth.ErrPasswordRequired) || errors.Is(err, auth.ErrPasswordMismatch) {
			r.renderForm(w, req, http.StatusBadRequest, "signup.html", formData{
				Name:  name,
				Error: err.Error(),
			})
			return
		}
		r.logger.Error("signup failed", "error", err)
		http.Error(w, "could not create account", http.StatusInternalServerError)
		return
	}
	r.setSessionCookie(w, token)
	http.Redirect(w, req, "/", http.StatusSeeOther)
}

func (r *Router) handleLoginForm(w http.ResponseWriter, req *http.Request) {
	r.renderForm(w, req, http.StatusOK, "login.html", formData{})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	name := req.FormValue("name")
	password := req.FormValue("password")
	_, token, err := r.auth.Login(req.Context(), name, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			r.renderForm(w, req, http.StatusUnauthorized, "login.html", formData{
				Name:  name,
				Error: err.Error(),
			})
			return
		}
		r.logger.Error("login failed", "error", err)
		http.Error(w, "could not log in", http.StatusInternalServerError)
		return
	}
	r.setSessionCookie(w, token)
	http.Redirect(w, req, "/", http.StatusSeeOther)
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	r.clearSessionCookie(w)
	http.Redirect(w, req, "/", http.StatusSeeOther)
}

func (r *Router) handleCommentsWS(w http.ResponseWriter, req *http.Request) {
	hub := r.articles.Hub()
	if hub == nil {
		writeError(w, http.StatusNotFound, "comment stream disabled")
		return
	}
	articleID := req.URL.Query().Get("article_id")
	if articleID == "" {
		writeError(w, http.StatusBadRequest, "article_id query parameter required")
		return
	}
	if _, err := r.articles.Get(req.Context(), articleID); err != nil {
		r.serviceError(w, err)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	hub.Register(articleID, client)
	go func() {
		defer func() {
			hub.Unregister(articleID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// renderForm renders one of the form pages with the shared header state
// filled in from the session.
func (r *Router) renderForm(w http.ResponseWriter, req *http.Request, status int, name string, data formData) {
	if user := userFromContext(req.Context()); user != nil {
		data.UserName = user.Name
		data.LoggedIn = true
	}
	if err := r.render.page(w, status, name, data); err != nil {
		r.logger.Error("rendering page failed", "template", name, "error", err)
	}
}

// serviceError maps service failures onto HTTP statuses. Denials and
// missing articles are surfaced rather than silently redirected.
func (r *Router) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, "article not found", http.StatusNotFound)
	case errors.Is(err, articlesvc.ErrForbidden):
		http.Error(w, "only the author may do that", http.StatusForbidden)
	default:
		r.logger.Error("article operation failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (r *Router) audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		route := req.URL.Path
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := chimw.GetReqID(req.Context()); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if user := userFromContext(req.Context()); user != nil {
			actor = "user"
			fields = append(fields, "user_id", user.ID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
		r.recordRequestMetrics(req.Method, route, status, duration)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
