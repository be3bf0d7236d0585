package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/timada-org/todos/internal/auth"
	"github.com/timada-org/todos/internal/todo"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"landing", "sign_in", "sign_up", "todos", "error"}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))

	for _, name := range pageNames {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, err
		}

		pages[name] = t
	}

	return pages, nil
}

type pageData struct {
	Error      string
	Fields     map[string]string
	Name       string
	Email      string
	RememberMe bool
	User       *auth.User
	Todos      []todo.Todo
	Title      string
}

func (app *App) render(w http.ResponseWriter, r *http.Request, status int, name string, data *pageData) {
	var buf bytes.Buffer
	if err := app.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		app.logger.Error("render failed", "page", name, "err", err)
		http.Error(w, "Internal server error.", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (app *App) renderError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	app.render(w, r, http.StatusInternalServerError, "error", &pageData{Error: "Something went wrong. Please try again."})
}

// formError turns a validation error into page data, or reports false for
// any other error.
func formError(err error, data *pageData) bool {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return false
	}

	data.Fields = make(map[string]string, len(ve.Fields))
	for _, f := range ve.Fields {
		data.Fields[f.Field] = f.Message
	}
	data.Error = "Please fix the highlighted fields."

	return true
}

func (app *App) landingPage(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	app.render(w, r, http.StatusOK, "landing", &pageData{})
}

func (app *App) signInPage(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	app.render(w, r, http.StatusOK, "sign_in", &pageData{RememberMe: true})
}

func (app *App) signInSubmit(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	data := &pageData{
		Email:      r.PostFormValue("email"),
		RememberMe: r.PostFormValue("rememberMe") != "",
	}

	var input SignInInput
	err := app.validator.DecodeValue(signInSchema, map[string]any{
		"email":      data.Email,
		"password":   r.PostFormValue("password"),
		"rememberMe": data.RememberMe,
	}, &input)
	if formError(err, data) {
		app.render(w, r, http.StatusBadRequest, "sign_in", data)
		return
	}
	if err != nil {
		app.renderError(w, r, err)
		return
	}

	us, token, err := app.auth.SignIn(r.Context(), input.Email, input.Password, input.RememberMe)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		data.Error = "Sign in failed: " + err.Error() + "."
		app.render(w, r, http.StatusUnauthorized, "sign_in", data)
		return
	}
	if err != nil {
		app.renderError(w, r, err)
		return
	}

	app.setSessionCookie(w, token, us)
	http.Redirect(w, r, todosPath, http.StatusSeeOther)
}

func (app *App) signUpPage(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	app.render(w, r, http.StatusOK, "sign_up", &pageData{})
}

func (app *App) signUpSubmit(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	data := &pageData{
		Name:  r.PostFormValue("name"),
		Email: r.PostFormValue("email"),
	}

	var input SignUpInput
	err := app.validator.DecodeValue(signUpSchema, map[string]any{
		"name":     data.Name,
		"email":    data.Email,
		"password": r.PostFormValue("password"),
	}, &input)
	if formError(err, data) {
		app.render(w, r, http.StatusBadRequest, "sign_up", data)
		return
	}
	if err != nil {
		app.renderError(w, r, err)
		return
	}

	us, token, err := app.auth.SignUp(r.Context(), input.Name, input.Email, input.Password)
	if errors.Is(err, auth.ErrEmailTaken) {
		data.Error = "Sign up failed: " + err.Error() + "."
		data.Fields = map[string]string{"email": err.Error()}
		app.render(w, r, http.StatusConflict, "sign_up", data)
		return
	}
	if err != nil {
		app.renderError(w, r, err)
		return
	}

	app.logger.Info("signed up", "user_id", us.User.ID)
	app.setSessionCookie(w, token, us)
	http.Redirect(w, r, todosPath, http.StatusSeeOther)
}

func (app *App) signOutSubmit(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if err := app.endSession(r); err != nil {
		app.renderError(w, r, err)
		return
	}

	app.clearSessionCookie(w)
	http.Redirect(w, r, landingPath, http.StatusSeeOther)
}

func (app *App) todosPage(w http.ResponseWriter, r *http.Request, p httprouter.Params, us *auth.UserSession) {
	app.renderTodos(w, r, http.StatusOK, us, &pageData{})
}

func (app *App) renderTodos(w http.ResponseWriter, r *http.Request, status int, us *auth.UserSession, data *pageData) {
	todos, err := app.todos.List(r.Context(), us.User.ID)
	if err != nil {
		app.renderError(w, r, err)
		return
	}

	data.User = &us.User
	data.Todos = todos

	app.render(w, r, status, "todos", data)
}

func (app *App) addTodoSubmit(w http.ResponseWriter, r *http.Request, p httprouter.Params, us *auth.UserSession) {
	data := &pageData{Title: r.PostFormValue("title")}

	var input AddTodoInput
	err := app.validator.DecodeValue(addTodoSchema, map[string]any{"title": data.Title}, &input)
	if formError(err, data) {
		app.renderTodos(w, r, http.StatusBadRequest, us, data)
		return
	}
	if err != nil {
		app.renderError(w, r, err)
		return
	}

	if _, err := app.todos.Add(r.Context(), us.User.ID, input.Title); err != nil {
		app.renderError(w, r, err)
		return
	}

	http.Redirect(w, r, todosPath, http.StatusSeeOther)
}

// todoIDParam validates the :id path parameter with the same schema as the
// JSON endpoints.
func (app *App) todoIDParam(p httprouter.Params) (uint64, error) {
	id, err := strconv.ParseUint(p.ByName("id"), 10, 63)
	if err != nil {
		return 0, fieldError("todoId", "must be a positive integer")
	}

	var input TodoIDInput
	doc := map[string]any{"todoId": json.Number(strconv.FormatUint(id, 10))}
	if err := app.validator.DecodeValue(todoIDSchema, doc, &input); err != nil {
		return 0, err
	}

	return input.TodoID, nil
}

func (app *App) toggleTodoSubmit(w http.ResponseWriter, r *http.Request, p httprouter.Params, us *auth.UserSession) {
	id, err := app.todoIDParam(p)
	if err != nil {
		http.Error(w, "Bad request.", http.StatusBadRequest)
		return
	}

	if err := app.todos.ToggleCompletion(r.Context(), us.User.ID, id); err != nil {
		app.renderError(w, r, err)
		return
	}

	http.Redirect(w, r, todosPath, http.StatusSeeOther)
}

func (app *App) deleteTodoSubmit(w http.ResponseWriter, r *http.Request, p httprouter.Params, us *auth.UserSession) {
	id, err := app.todoIDParam(p)
	if err != nil {
		http.Error(w, "Bad request.", http.StatusBadRequest)
		return
	}

	if err := app.todos.Delete(r.Context(), us.User.ID, id); err != nil {
		app.renderError(w, r, err)
		return
	}

	http.Redirect(w, r, todosPath, http.StatusSeeOther)
}
