package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/timada-org/todos/internal/auth"
	"github.com/timada-org/todos/internal/sse"
	"github.com/timada-org/todos/pkg/topic"
)

// streamEvents opens a change stream of the caller's events. The optional
// filter query narrows it, e.g. ?filter=todos/%2B.
func (app *App) streamEvents(w http.ResponseWriter, r *http.Request, p httprouter.Params, us *auth.UserSession) {
	value := r.URL.Query().Get("filter")
	if value == "" {
		value = topic.All
	}

	filter, err := topic.NewFilter(value)
	if err != nil {
		app.writeError(w, r, fieldError("filter", err.Error()))
		return
	}

	app.sse.Serve(w, r, func(id string, session *sse.Session) {
		app.bus.Subscribe(us.User.ID, id, session, filter)
	})
}
