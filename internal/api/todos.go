package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/timada-org/todos/internal/auth"
)

var success = map[string]bool{"success": true}

func (app *App) listTodos(w http.ResponseWriter, r *http.Request, p httprouter.Params, us *auth.UserSession) {
	todos, err := app.todos.List(r.Context(), us.User.ID)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, todos)
}

func (app *App) addTodo(w http.ResponseWriter, r *http.Request, p httprouter.Params, us *auth.UserSession) {
	var input AddTodoInput
	if err := app.validator.Decode(addTodoSchema, r.Body, &input); err != nil {
		app.writeError(w, r, err)
		return
	}

	created, err := app.todos.Add(r.Context(), us.User.ID, input.Title)
	if err != nil {
		app.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (app *App) deleteTodo(w http.ResponseWriter, r *http.Request, p httprouter.Params, us *auth.UserSession) {
	var input TodoIDInput
	if err := app.validator.Decode(todoIDSchema, r.Body, &input); err != nil {
		app.writeError(w, r, err)
		return
	}

	if err := app.todos.Delete(r.Context(), us.User.ID, input.TodoID); err != nil {
		app.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, success)
}

func (app *App) toggleTodo(w http.ResponseWriter, r *http.Request, p httprouter.Params, us *auth.UserSession) {
	var input TodoIDInput
	if err := app.validator.Decode(todoIDSchema, r.Body, &input); err != nil {
		app.writeError(w, r, err)
		return
	}

	if err := app.todos.ToggleCompletion(r.Context(), us.User.ID, input.TodoID); err != nil {
		app.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, success)
}
