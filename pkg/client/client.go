package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/timada-org/todos/pkg/topic"
)

const (
	todosKey = "todos"
	authKey  = "auth"
)

var todosFilter = topic.MustFilter("todos/#")

type Todo struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UserID    string    `json:"userId"`
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	RememberMe bool      `json:"rememberMe"`
	ExpiresAt  time.Time `json:"expiresAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

type UserSession struct {
	User    User    `json:"user"`
	Session Session `json:"session"`
}

type ClientOptions struct {
	URL        string
	HTTPClient *http.Client
}

// Client talks to a todos server as one signed-in browser would: the session
// cookie lives in the HTTP client's jar and reads go through a Cache.
type Client struct {
	url   string
	http  *http.Client
	cache *Cache
}

func New(options ClientOptions) (*Client, error) {
	httpClient := options.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}

		httpClient = &http.Client{Jar: jar}
	}

	return &Client{
		url:   strings.TrimSuffix(options.URL, "/"),
		http:  httpClient,
		cache: NewCache(),
	}, nil
}

func (c *Client) Cache() *Cache {
	return c.cache
}

func (c *Client) SignUp(ctx context.Context, name, email, password string) (*UserSession, error) {
	var us UserSession
	err := c.do(ctx, http.MethodPost, "/api/auth/sign-up", map[string]any{
		"name":     name,
		"email":    email,
		"password": password,
	}, &us)
	if err != nil {
		return nil, err
	}

	c.cache.Clear()

	return &us, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string, rememberMe bool) (*UserSession, error) {
	var us UserSession
	err := c.do(ctx, http.MethodPost, "/api/auth/sign-in", map[string]any{
		"email":      email,
		"password":   password,
		"rememberMe": rememberMe,
	}, &us)
	if err != nil {
		return nil, err
	}

	c.cache.Clear()

	return &us, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/sign-out", nil, nil); err != nil {
		return err
	}

	c.cache.Clear()

	return nil
}

// Session returns the current session, or nil when signed out.
func (c *Client) Session(ctx context.Context) (*UserSession, error) {
	return Fetch(ctx, c.cache, authKey, func(ctx context.Context) (*UserSession, error) {
		var us *UserSession
		if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, &us); err != nil {
			return nil, err
		}

		return us, nil
	})
}

func (c *Client) Todos(ctx context.Context) ([]Todo, error) {
	return Fetch(ctx, c.cache, todosKey, func(ctx context.Context) ([]Todo, error) {
		todos := []Todo{}
		if err := c.do(ctx, http.MethodGet, "/api/todos", nil, &todos); err != nil {
			return nil, err
		}

		return todos, nil
	})
}

func (c *Client) AddTodo(ctx context.Context, title string) (*Todo, error) {
	var todo Todo
	if err := c.do(ctx, http.MethodPost, "/api/todos/add", map[string]any{"title": title}, &todo); err != nil {
		return nil, err
	}

	c.cache.Invalidate(todosFilter)

	return &todo, nil
}

func (c *Client) DeleteTodo(ctx context.Context, id uint64) error {
	return c.mutate(ctx, "/api/todos/delete", id)
}

func (c *Client) ToggleTodo(ctx context.Context, id uint64) error {
	return c.mutate(ctx, "/api/todos/toggle", id)
}

func (c *Client) mutate(ctx context.Context, path string, id uint64) error {
	if err := c.do(ctx, http.MethodPost, path, map[string]any{"todoId": id}, nil); err != nil {
		return err
	}

	c.cache.Invalidate(todosFilter)

	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, dst any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return decodeError(res)
	}

	if dst == nil {
		_, err = io.Copy(io.Discard, res.Body)
		return err
	}

	return json.NewDecoder(res.Body).Decode(dst)
}

func decodeError(res *http.Response) error {
	apiErr := &APIError{Status: res.StatusCode}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	// non-JSON bodies keep only the status
	_ = json.Unmarshal(data, apiErr)

	return apiErr
}
