package sse

import (
	"net/http"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Server struct {
	mux                 sync.RWMutex
	CloseSessionHandler func(id string, session *Session)
	sessions            map[string]*Session
}

func New() *Server {
	return &Server{
		sessions: make(map[string]*Session),
	}
}

// Serve streams events to the client until the request ends. open runs once
// the session is registered and before the first event is written.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, open func(id string, session *Session)) {
	id, err := gonanoid.New()
	if err != nil {
		http.Error(w, "Internal server error.", http.StatusInternalServerError)
		return
	}

	session := newSession()

	s.mux.Lock()
	s.sessions[id] = session
	s.mux.Unlock()

	if open != nil {
		open(id, session)
	}

	session.Send(&Event{
		Topic: SYSSessionTopic,
		Name:  SYSSessionCreated,
		Data:  id,
	})

	session.listen(w, r)

	s.mux.Lock()
	delete(s.sessions, id)
	s.mux.Unlock()

	if s.CloseSessionHandler != nil {
		s.CloseSessionHandler(id, session)
	}
}

func (s *Server) Get(id string) (*Session, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	session, ok := s.sessions[id]

	return session, ok
}

func (s *Server) Len() int {
	s.mux.RLock()
	defer s.mux.RUnlock()

	return len(s.sessions)
}

// Close ends every open stream.
func (s *Server) Close() {
	s.mux.RLock()
	defer s.mux.RUnlock()

	for _, session := range s.sessions {
		session.close()
	}
}
