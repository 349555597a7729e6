package httpx

import (
	"context"
	"net/http"

	"github.com/kingliujiaxin/Mutiple-user-blog-system/internal/domain"
)

// sessionCookieName is the cookie carrying the session token. The name
// predates this rewrite and is kept for compatibility with old clients.
const sessionCookieName = "key"

type sessionContextKey string

const contextKeyUser sessionContextKey = "blog-session-user"

// withUser resolves the session cookie once per request and stores the
// user on the context. Requests without a valid session pass through
// unauthenticated; auth-required handlers decide what to do.
func (r *Router) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		cookie, err := req.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, req)
			return
		}
		user, err := r.auth.Authorize(req.Context(), cookie.Value)
		if err != nil {
			// Stale or forged cookie. Treat as signed out.
			r.logger.Debug("session did not resolve", "error", err, "path", req.URL.Path)
			next.ServeHTTP(w, req)
			return
		}
		ctx := context.WithValue(req.Context(), contextKeyUser, user)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// userFromContext extracts the resolved session user, nil when the
// request is anonymous.
func userFromContext(ctx context.Context) *domain.User {
	value := ctx.Value(contextKeyUser)
	if value == nil {
		return nil
	}
	user, ok := value.(*domain.User)
	if !ok {
		return nil
	}
	return user
}

// requireUser returns the session user or redirects to the login page
// and returns nil.
func (r *Router) requireUser(w http.ResponseWriter, req *http.Request) *domain.User {
	user := userFromContext(req.Context())
	if user == nil {
		http.Redirect(w, req, "/login", http.StatusSeeOther)
		return nil
	}
	return user
}

// setSessionCookie installs the session token on the response.
func (r *Router) setSessionCookie(w http.ResponseWriter, token string) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.cfg.SessionSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if r.cfg.SessionTTL > 0 {
		cookie.MaxAge = int(r.cfg.SessionTTL.Seconds())
	}
	http.SetCookie(w, cookie)
}

// clearSessionCookie signs the client out. There is no server-side
// revocation list; the token simply stops being presented.
func (r *Router) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   r.cfg.SessionSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
