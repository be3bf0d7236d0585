package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/timada-org/todos/internal/auth"
)

const (
	landingPath = "/"
	todosPath   = "/todos"
)

// sessionHandle is a handler that runs with the caller's verified session.
type sessionHandle func(w http.ResponseWriter, r *http.Request, p httprouter.Params, us *auth.UserSession)

// tokens lists the session cookie, then the bearer token, skipping absent
// ones.
func (app *App) tokens(r *http.Request) []string {
	var tokens []string

	if cookie, err := r.Cookie(app.cookieName); err == nil && cookie.Value != "" {
		tokens = append(tokens, cookie.Value)
	}

	data := strings.Split(r.Header.Get("Authorization"), " ")
	if len(data) == 2 && data[0] == "Bearer" && data[1] != "" {
		tokens = append(tokens, data[1])
	}

	return tokens
}

// session verifies the tokens in order; a stale cookie does not hide a valid
// bearer token.
func (app *App) session(r *http.Request) (*auth.UserSession, error) {
	for _, token := range app.tokens(r) {
		us, err := app.auth.Verify(r.Context(), token)
		if !errors.Is(err, auth.ErrUnauthenticated) {
			return us, err
		}
	}

	return nil, auth.ErrUnauthenticated
}

// authenticated rejects requests without a valid session before h runs.
func (app *App) authenticated(h sessionHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		us, err := app.session(r)
		if err != nil {
			app.writeError(w, r, err)
			return
		}

		h(w, r, p, us)
	}
}

// authenticatedPage sends anonymous visitors to the landing page.
func (app *App) authenticatedPage(h sessionHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		us, err := app.session(r)
		if errors.Is(err, auth.ErrUnauthenticated) {
			app.clearSessionCookie(w)
			http.Redirect(w, r, landingPath, http.StatusSeeOther)
			return
		}
		if err != nil {
			app.renderError(w, r, err)
			return
		}

		h(w, r, p, us)
	}
}

// anonymousPage sends signed-in users to their todos.
func (app *App) anonymousPage(h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		_, err := app.session(r)
		if err == nil {
			http.Redirect(w, r, todosPath, http.StatusSeeOther)
			return
		}
		if !errors.Is(err, auth.ErrUnauthenticated) {
			app.renderError(w, r, err)
			return
		}

		h(w, r, p)
	}
}

// setSessionCookie makes a browser-session cookie unless the session is
// remembered, in which case it lives as long as the session.
func (app *App) setSessionCookie(w http.ResponseWriter, token string, us *auth.UserSession) {
	cookie := &http.Cookie{
		Name:     app.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   app.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}

	if us.Session.RememberMe {
		cookie.Expires = us.Session.ExpiresAt
		cookie.MaxAge = int(time.Until(us.Session.ExpiresAt).Seconds())
	}

	http.SetCookie(w, cookie)
}

func (app *App) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   app.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
