package httpx

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/yuin/goldmark"

	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer executes the embedded page templates and converts article
// bodies from markdown. Raw HTML inside bodies is not passed through;
// goldmark escapes it, so escaping stays a render-layer concern.
type Renderer struct {
	templates *template.Template
	markdown  goldmark.Markdown
}

// NewRenderer parses the embedded templates.
func NewRenderer() *Renderer {
	return &Renderer{
		templates: template.Must(template.ParseFS(templateFS, "templates/*.html")),
		markdown:  goldmark.New(),
	}
}

// articleView is an Article prepared for templates.
type articleView struct {
	ID        string
	Title     string
	Author    string
	Body      template.HTML
	RawBody   string
	Votes     int
	Comments  []string
	CreatedAt time.Time
}

// viewData feeds the article list page.
type viewData struct {
	Articles []articleView
	UserName string
	LoggedIn bool
	Error    string
}

// formData feeds the write/rewrite/login/signup pages.
type formData struct {
	ArticleID string
	Title     string
	Body      string
	Name      string
	UserName  string
	LoggedIn  bool
	Error     string
}

func (r *Renderer) articleView(article domain.Article) articleView {
	return articleView{
		ID:        article.ID,
		Title:     article.Title,
		Author:    article.Author,
		Body:      r.body(article.Body),
		RawBody:   article.Body,
		Votes:     len(article.Votes),
		Comments:  article.Comments,
		CreatedAt: article.CreatedAt,
	}
}

// body converts markdown to HTML. On conversion failure the raw text is
// emitted through template escaping instead.
func (r *Renderer) body(src string) template.HTML {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

// page renders a template to the response. The template runs into a
// buffer first so a failure can still produce a clean 500.
func (r *Renderer) page(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
