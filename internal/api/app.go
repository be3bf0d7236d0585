package api

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/julienschmidt/httprouter"

	"github.com/timada-org/todos/internal/auth"
	"github.com/timada-org/todos/internal/events"
	"github.com/timada-org/todos/internal/sse"
	"github.com/timada-org/todos/internal/todo"
)

type Options struct {
	Addr         string
	Todos        *todo.Service
	Auth         *auth.Provider
	Bus          *events.Bus
	SSE          *sse.Server
	CookieName   string
	SecureCookie bool
	Logger       *log.Logger
}

type App struct {
	addr         string
	todos        *todo.Service
	auth         *auth.Provider
	bus          *events.Bus
	sse          *sse.Server
	cookieName   string
	secureCookie bool
	logger       *log.Logger
	validator    *Validator
	pages        map[string]*template.Template
	server       *http.Server
}

func New(options Options) (*App, error) {
	if options.Todos == nil || options.Auth == nil {
		return nil, errors.New("api: todos and auth are required")
	}

	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = log.Default()
	}

	cookieName := options.CookieName
	if cookieName == "" {
		cookieName = "todos_session"
	}

	server := options.SSE
	if server == nil {
		server = sse.New()
	}

	bus := options.Bus
	if bus == nil {
		bus = events.NewBus(server)
	}

	app := &App{
		addr:         options.Addr,
		todos:        options.Todos,
		auth:         options.Auth,
		bus:          bus,
		sse:          server,
		cookieName:   cookieName,
		secureCookie: options.SecureCookie,
		logger:       logger.With("component", "api"),
		validator:    validator,
		pages:        pages,
	}

	app.server = &http.Server{
		Addr:              options.Addr,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return app, nil
}

func (app *App) Handler() http.Handler {
	router := httprouter.New()

	router.GET("/api/todos", app.authenticated(app.listTodos))
	router.POST("/api/todos/add", app.authenticated(app.addTodo))
	router.POST("/api/todos/delete", app.authenticated(app.deleteTodo))
	router.POST("/api/todos/toggle", app.authenticated(app.toggleTodo))
	router.GET("/api/events", app.authenticated(app.streamEvents))

	router.POST("/api/auth/sign-up", app.signUp)
	router.POST("/api/auth/sign-in", app.signIn)
	router.POST("/api/auth/sign-out", app.signOut)
	router.GET("/api/auth/session", app.currentSession)

	router.GET(landingPath, app.anonymousPage(app.landingPage))
	router.GET("/sign-in", app.anonymousPage(app.signInPage))
	router.POST("/sign-in", app.anonymousPage(app.signInSubmit))
	router.GET("/sign-up", app.anonymousPage(app.signUpPage))
	router.POST("/sign-up", app.anonymousPage(app.signUpSubmit))
	router.POST("/sign-out", app.signOutSubmit)
	router.GET(todosPath, app.authenticatedPage(app.todosPage))
	router.POST(todosPath, app.authenticatedPage(app.addTodoSubmit))
	router.POST("/todos/:id/toggle", app.authenticatedPage(app.toggleTodoSubmit))
	router.POST("/todos/:id/delete", app.authenticatedPage(app.deleteTodoSubmit))

	return app.accessLog(limitBodies(router))
}

func (app *App) Listen() error {
	app.server.Handler = app.Handler()

	app.logger.Info("listening", "addr", app.addr)

	if err := app.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown closes the change streams, then waits for in-flight requests.
func (app *App) Shutdown(ctx context.Context) error {
	app.sse.Close()

	return app.server.Shutdown(ctx)
}
