package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

const bufferSize = 16

type Session struct {
	messages chan []byte
	done     chan struct{}
	once     sync.Once
}

func newSession() *Session {
	return &Session{
		messages: make(chan []byte, bufferSize),
		done:     make(chan struct{}),
	}
}

// Send queues e for the client. It reports false when the session is closed
// or its buffer is full; the event is then dropped.
func (s *Session) Send(e *Event) bool {
	payload, err := json.Marshal(e)
	if err != nil {
		return false
	}

	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.messages <- payload:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Session) listen(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported.", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	defer s.close()

	for {
		select {
		case message := <-s.messages:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", message); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return

		case <-s.done:
			return
		}
	}
}
