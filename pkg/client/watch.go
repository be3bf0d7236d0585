package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/timada-org/todos/pkg/topic"
)

// maxEventSize bounds a single change-stream frame.
const maxEventSize = 1 << 20

type Event struct {
	Topic string          `json:"topic"`
	Name  string          `json:"name"`
	Data  json.RawMessage `json:"data"`
}

// Watch follows the change stream until ctx is done or the server ends it.
// Every todo event invalidates the cached list before handlers run; handlers
// also see the $SYS/session event that opens the stream.
func (c *Client) Watch(ctx context.Context, handlers ...func(Event)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/api/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	res, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return decodeError(res)
	}

	scanner := bufio.NewScanner(res.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxEventSize)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return err
		}

		if name, err := topic.NewName(event.Topic); err == nil && todosFilter.Match(name) {
			c.cache.Invalidate(todosFilter)
		}

		for _, handle := range handlers {
			handle(event)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return err
	}

	return nil
}
