package api

import (
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/timada-org/todos/internal/auth"
)

type sessionBody struct {
	*auth.UserSession
	Token string `json:"token"`
}

func (app *App) signUp(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var input SignUpInput
	if err := app.validator.Decode(signUpSchema, r.Body, &input); err != nil {
		app.writeError(w, r, err)
		return
	}

	us, token, err := app.auth.SignUp(r.Context(), input.Name, input.Email, input.Password)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	app.logger.Info("signed up", "user_id", us.User.ID)
	app.setSessionCookie(w, token, us)
	writeJSON(w, http.StatusOK, sessionBody{us, token})
}

func (app *App) signIn(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var input SignInInput
	if err := app.validator.Decode(signInSchema, r.Body, &input); err != nil {
		app.writeError(w, r, err)
		return
	}

	us, token, err := app.auth.SignIn(r.Context(), input.Email, input.Password, input.RememberMe)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	app.setSessionCookie(w, token, us)
	writeJSON(w, http.StatusOK, sessionBody{us, token})
}

// signOut succeeds without a session too; the cookie is cleared either way.
func (app *App) signOut(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if err := app.endSession(r); err != nil {
		app.writeError(w, r, err)
		return
	}

	app.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, success)
}

func (app *App) endSession(r *http.Request) error {
	us, err := app.session(r)
	if errors.Is(err, auth.ErrUnauthenticated) {
		return nil
	}
	if err != nil {
		return err
	}

	return app.auth.SignOut(r.Context(), us.Session.ID)
}

// currentSession answers null for anonymous callers.
func (app *App) currentSession(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	us, err := app.session(r)
	if errors.Is(err, auth.ErrUnauthenticated) {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, us)
}
