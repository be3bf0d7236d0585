package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/timada-org/todos/internal/api"
	"github.com/timada-org/todos/internal/auth"
	"github.com/timada-org/todos/internal/events"
	"github.com/timada-org/todos/internal/sse"
	"github.com/timada-org/todos/internal/store"
	"github.com/timada-org/todos/internal/todo"
)

type harness struct {
	server *httptest.Server
	repo   *todo.Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "todos.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db, append(auth.Models(), &todo.Todo{})...))
	t.Cleanup(func() { _ = store.Close(db) })

	logger := log.New(io.Discard)
	sseServer := sse.New()
	bus := events.NewBus(sseServer)
	repo := todo.NewRepository(db)

	app, err := api.New(api.Options{
		Todos: todo.NewService(repo, bus, logger),
		Auth: auth.NewProvider(auth.Options{
			DB:         db,
			Secret:     []byte("test-secret"),
			BcryptCost: bcrypt.MinCost,
		}),
		Bus:    bus,
		SSE:    sseServer,
		Logger: logger,
	})
	require.NoError(t, err)

	server := httptest.NewServer(app.Handler())
	t.Cleanup(server.Close)

	return &harness{server: server, repo: repo}
}

// browser keeps cookies and does not follow redirects.
func (h *harness) browser(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, v), string(r.body))
}

func (h *harness) do(t *testing.T, c *http.Client, method, path string, body any, headers ...string) *response {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	res, err := c.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	return &response{status: res.StatusCode, header: res.Header, body: data}
}

type errorBody struct {
	Error    string           `json:"error"`
	Message  string           `json:"message"`
	Fields   []api.FieldError `json:"fields"`
	Redirect string           `json:"redirect"`
}

type sessionBody struct {
	User    auth.User    `json:"user"`
	Session auth.Session `json:"session"`
	Token   string       `json:"token"`
}

func (h *harness) signUp(t *testing.T, c *http.Client, email string) *sessionBody {
	t.Helper()

	res := h.do(t, c, http.MethodPost, "/api/auth/sign-up", map[string]any{
		"name":     "A",
		"email":    email,
		"password": "password1",
	})
	require.Equal(t, http.StatusOK, res.status, string(res.body))

	var body sessionBody
	res.decode(t, &body)

	return &body
}

func (h *harness) list(t *testing.T, c *http.Client) []todo.Todo {
	t.Helper()

	res := h.do(t, c, http.MethodGet, "/api/todos", nil)
	require.Equal(t, http.StatusOK, res.status, string(res.body))

	var todos []todo.Todo
	res.decode(t, &todos)

	return todos
}

func TestTodoScenario(t *testing.T) {
	h := newHarness(t)
	c := h.browser(t)

	us := h.signUp(t, c, "a@x.com")
	assert.Equal(t, "a@x.com", us.User.Email)
	assert.NotEmpty(t, us.Token)

	assert.Empty(t, h.list(t, c))

	res := h.do(t, c, http.MethodPost, "/api/todos/add", map[string]any{"title": "Buy milk"})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))

	var created todo.Todo
	res.decode(t, &created)
	assert.Equal(t, "Buy milk", created.Title)
	assert.False(t, created.Completed)
	assert.Equal(t, us.User.ID, created.UserID)

	todos := h.list(t, c)
	require.Len(t, todos, 1)
	assert.Equal(t, "Buy milk", todos[0].Title)
	assert.False(t, todos[0].Completed)

	res = h.do(t, c, http.MethodPost, "/api/todos/toggle", map[string]any{"todoId": created.ID})
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	assert.JSONEq(t, `{"success":true}`, string(res.body))

	todos = h.list(t, c)
	require.Len(t, todos, 1)
	assert.True(t, todos[0].Completed)

	res = h.do(t, c, http.MethodPost, "/api/todos/delete", map[string]any{"todoId": created.ID})
	require.Equal(t, http.StatusOK, res.status, string(res.body))

	assert.Empty(t, h.list(t, c))

	t.Run("delete missing is a no-op", func(t *testing.T) {
		res := h.do(t, c, http.MethodPost, "/api/todos/delete", map[string]any{"todoId": 999})
		assert.Equal(t, http.StatusOK, res.status)
		assert.Empty(t, h.list(t, c))
	})
}

func TestUnauthenticated(t *testing.T) {
	h := newHarness(t)
	c := h.browser(t)

	t.Run("list", func(t *testing.T) {
		res := h.do(t, c, http.MethodGet, "/api/todos", nil)
		require.Equal(t, http.StatusUnauthorized, res.status)

		var body errorBody
		res.decode(t, &body)
		assert.Equal(t, "unauthenticated", body.Error)
		assert.Equal(t, "/", body.Redirect)
	})

	t.Run("add never reaches storage", func(t *testing.T) {
		res := h.do(t, c, http.MethodPost, "/api/todos/add", map[string]any{"title": "Buy milk"})
		require.Equal(t, http.StatusUnauthorized, res.status)

		todos, err := h.repo.List(context.Background(), "")
		require.NoError(t, err)
		assert.Empty(t, todos)
	})

	t.Run("forged bearer", func(t *testing.T) {
		res := h.do(t, c, http.MethodGet, "/api/todos", nil, "Authorization", "Bearer nope")
		require.Equal(t, http.StatusUnauthorized, res.status)
	})

	t.Run("events", func(t *testing.T) {
		res := h.do(t, c, http.MethodGet, "/api/events", nil)
		require.Equal(t, http.StatusUnauthorized, res.status)
	})
}

func TestValidation(t *testing.T) {
	h := newHarness(t)
	c := h.browser(t)
	us := h.signUp(t, c, "a@x.com")

	cases := []struct {
		name  string
		path  string
		body  any
		field string
	}{
		{"empty title", "/api/todos/add", map[string]any{"title": ""}, "title"},
		{"blank title", "/api/todos/add", map[string]any{"title": "   "}, "title"},
		{"missing title", "/api/todos/add", map[string]any{}, "title"},
		{"numeric title", "/api/todos/add", map[string]any{"title": 1}, "title"},
		{"unknown field", "/api/todos/add", map[string]any{"title": "x", "userId": "someone"}, "userId"},
		{"zero id", "/api/todos/delete", map[string]any{"todoId": 0}, "todoId"},
		{"string id", "/api/todos/toggle", map[string]any{"todoId": "1"}, "todoId"},
		{"fractional id", "/api/todos/toggle", map[string]any{"todoId": 1.5}, "todoId"},
		{"id past int64", "/api/todos/delete", `{"todoId":9223372036854775808}`, "todoId"},
		{"id past uint64", "/api/todos/toggle", `{"todoId":18446744073709551616}`, "todoId"},
		{"long title", "/api/todos/add", map[string]any{"title": strings.Repeat("x", 501)}, "title"},
		{"missing id", "/api/todos/toggle", nil, "todoId"},
		{"malformed", "/api/todos/add", `{"title":`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := h.do(t, c, http.MethodPost, tc.path, tc.body)
			require.Equal(t, http.StatusBadRequest, res.status, string(res.body))

			var body errorBody
			res.decode(t, &body)
			assert.Equal(t, "validation", body.Error)
			require.NotEmpty(t, body.Fields)
			assert.Equal(t, tc.field, body.Fields[0].Field)
		})
	}

	todos, err := h.repo.List(context.Background(), us.User.ID)
	require.NoError(t, err)
	assert.Empty(t, todos)
}

func TestOwnership(t *testing.T) {
	h := newHarness(t)
	alice := h.browser(t)
	bob := h.browser(t)

	h.signUp(t, alice, "alice@x.com")
	h.signUp(t, bob, "bob@x.com")

	res := h.do(t, alice, http.MethodPost, "/api/todos/add", map[string]any{"title": "alice's"})
	require.Equal(t, http.StatusCreated, res.status)

	var created todo.Todo
	res.decode(t, &created)

	assert.Empty(t, h.list(t, bob))

	res = h.do(t, bob, http.MethodPost, "/api/todos/toggle", map[string]any{"todoId": created.ID})
	assert.Equal(t, http.StatusOK, res.status)
	res = h.do(t, bob, http.MethodPost, "/api/todos/delete", map[string]any{"todoId": created.ID})
	assert.Equal(t, http.StatusOK, res.status)

	todos := h.list(t, alice)
	require.Len(t, todos, 1)
	assert.False(t, todos[0].Completed)
}

func TestAuthEndpoints(t *testing.T) {
	h := newHarness(t)
	c := h.browser(t)

	t.Run("anonymous session", func(t *testing.T) {
		res := h.do(t, c, http.MethodGet, "/api/auth/session", nil)
		require.Equal(t, http.StatusOK, res.status)
		assert.Equal(t, "null", string(bytes.TrimSpace(res.body)))
	})

	us := h.signUp(t, c, "a@x.com")

	t.Run("current session", func(t *testing.T) {
		res := h.do(t, c, http.MethodGet, "/api/auth/session", nil)
		require.Equal(t, http.StatusOK, res.status)

		var body sessionBody
		res.decode(t, &body)
		assert.Equal(t, us.User.ID, body.User.ID)
		assert.NotContains(t, string(res.body), "password")
	})

	t.Run("duplicate sign-up", func(t *testing.T) {
		res := h.do(t, h.browser(t), http.MethodPost, "/api/auth/sign-up", map[string]any{
			"name": "B", "email": "A@x.com", "password": "password1",
		})
		require.Equal(t, http.StatusConflict, res.status)
	})

	t.Run("short password", func(t *testing.T) {
		res := h.do(t, h.browser(t), http.MethodPost, "/api/auth/sign-up", map[string]any{
			"name": "B", "email": "b@x.com", "password": "short",
		})
		require.Equal(t, http.StatusBadRequest, res.status)

		var body errorBody
		res.decode(t, &body)
		assert.Equal(t, "password", body.Fields[0].Field)
	})

	t.Run("invalid email", func(t *testing.T) {
		res := h.do(t, h.browser(t), http.MethodPost, "/api/auth/sign-up", map[string]any{
			"name": "B", "email": "not-an-email", "password": "password1",
		})
		require.Equal(t, http.StatusBadRequest, res.status)
	})

	t.Run("wrong password", func(t *testing.T) {
		res := h.do(t, h.browser(t), http.MethodPost, "/api/auth/sign-in", map[string]any{
			"email": "a@x.com", "password": "password2",
		})
		require.Equal(t, http.StatusUnauthorized, res.status)

		var body errorBody
		res.decode(t, &body)
		assert.Equal(t, "invalid_credentials", body.Error)
		assert.Empty(t, body.Redirect)
	})

	t.Run("sign-in with bearer", func(t *testing.T) {
		client := h.browser(t)
		res := h.do(t, client, http.MethodPost, "/api/auth/sign-in", map[string]any{
			"email": "a@x.com", "password": "password1", "rememberMe": true,
		})
		require.Equal(t, http.StatusOK, res.status)

		var body sessionBody
		res.decode(t, &body)
		assert.True(t, body.Session.RememberMe)

		res = h.do(t, http.DefaultClient, http.MethodGet, "/api/todos", nil, "Authorization", "Bearer "+body.Token)
		assert.Equal(t, http.StatusOK, res.status)
	})

	t.Run("sign-out", func(t *testing.T) {
		res := h.do(t, c, http.MethodPost, "/api/auth/sign-out", nil)
		require.Equal(t, http.StatusOK, res.status)

		res = h.do(t, c, http.MethodGet, "/api/todos", nil)
		assert.Equal(t, http.StatusUnauthorized, res.status)

		res = h.do(t, http.DefaultClient, http.MethodGet, "/api/todos", nil, "Authorization", "Bearer "+us.Token)
		assert.Equal(t, http.StatusUnauthorized, res.status)

		res = h.do(t, c, http.MethodPost, "/api/auth/sign-out", nil)
		assert.Equal(t, http.StatusOK, res.status)
	})
}

func TestTodoIDNumberForms(t *testing.T) {
	h := newHarness(t)
	c := h.browser(t)
	h.signUp(t, c, "a@x.com")

	res := h.do(t, c, http.MethodPost, "/api/todos/add", map[string]any{"title": "Buy milk"})
	require.Equal(t, http.StatusCreated, res.status)

	res = h.do(t, c, http.MethodPost, "/api/todos/toggle", `{"todoId":1.0}`)
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	assert.True(t, h.list(t, c)[0].Completed)

	res = h.do(t, c, http.MethodPost, "/api/todos/toggle", `{"todoId":1e0}`)
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	assert.False(t, h.list(t, c)[0].Completed)

	for _, body := range []string{`{"todoId":1e3}`, `{"todoId":9223372036854775807}`} {
		res = h.do(t, c, http.MethodPost, "/api/todos/delete", body)
		assert.Equal(t, http.StatusOK, res.status, body)
		res = h.do(t, c, http.MethodPost, "/api/todos/toggle", body)
		assert.Equal(t, http.StatusOK, res.status, body)
	}

	require.Len(t, h.list(t, c), 1)
	assert.False(t, h.list(t, c)[0].Completed)
}

func TestBodyTooLarge(t *testing.T) {
	h := newHarness(t)
	c := h.browser(t)
	h.signUp(t, c, "a@x.com")

	body := `{"title":"` + strings.Repeat("x", 70000) + `"}`
	res := h.do(t, c, http.MethodPost, "/api/todos/add", body)
	require.Equal(t, http.StatusBadRequest, res.status)

	var errBody errorBody
	res.decode(t, &errBody)
	assert.Equal(t, "validation", errBody.Error)
	assert.Contains(t, errBody.Message, "too large")
	assert.Empty(t, h.list(t, c))
}

func TestBearerBehindStaleCookie(t *testing.T) {
	h := newHarness(t)
	us := h.signUp(t, h.browser(t), "a@x.com")

	res := h.do(t, http.DefaultClient, http.MethodGet, "/api/todos", nil,
		"Cookie", "todos_session=stale",
		"Authorization", "Bearer "+us.Token,
	)
	assert.Equal(t, http.StatusOK, res.status, string(res.body))

	res = h.do(t, http.DefaultClient, http.MethodGet, "/api/todos", nil, "Cookie", "todos_session=stale")
	assert.Equal(t, http.StatusUnauthorized, res.status)
}
