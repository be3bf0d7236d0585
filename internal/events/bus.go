package events

import (
	"context"
	"errors"
	"sync"

	"github.com/timada-org/todos/internal/sse"
	"github.com/timada-org/todos/pkg/topic"
)

// Sender is the receiving end of a change stream.
type Sender interface {
	Send(e *sse.Event) bool
}

// Bus fans events out to the streams of the event's user whose filters
// match the event topic.
type Bus struct {
	mux           sync.RWMutex
	subscriptions map[string]map[string]*Subscription
	userIds       map[string]string
}

func NewBus(server *sse.Server) *Bus {
	bus := &Bus{
		subscriptions: make(map[string]map[string]*Subscription),
		userIds:       make(map[string]string),
	}

	if server != nil {
		server.CloseSessionHandler = func(id string, session *sse.Session) {
			bus.Remove(id)
		}
	}

	return bus
}

// Publish delivers the event to local streams.
func (bus *Bus) Publish(ctx context.Context, event *Event) error {
	if event.Topic == nil {
		return errors.New("event topic cannot be nil")
	}

	bus.Dispatch(event)

	return nil
}

func (bus *Bus) Dispatch(event *Event) {
	bus.mux.RLock()
	defer bus.mux.RUnlock()

	for _, subscription := range bus.subscriptions[event.UserID] {
		subscription.send(event)
	}
}

// Subscribe adds filter to the stream sessionID of userID. A stream belongs
// to one user; subscribing it for another user moves it.
func (bus *Bus) Subscribe(userID string, sessionID string, session Sender, filter *topic.TopicFilter) {
	bus.mux.Lock()
	defer bus.mux.Unlock()

	if oldUserID, ok := bus.userIds[sessionID]; !ok || oldUserID != userID {
		bus.removeLocked(sessionID)

		if _, ok := bus.subscriptions[userID]; !ok {
			bus.subscriptions[userID] = make(map[string]*Subscription)
		}

		bus.userIds[sessionID] = userID
		bus.subscriptions[userID][sessionID] = &Subscription{
			session: session, filters: make(map[string]*topic.TopicFilter),
		}
	}

	bus.subscriptions[userID][sessionID].add(filter)
}

func (bus *Bus) Unsubscribe(userID string, sessionID string, filter *topic.TopicFilter) {
	bus.mux.RLock()
	defer bus.mux.RUnlock()

	if subscription, ok := bus.subscriptions[userID][sessionID]; ok {
		subscription.remove(filter)
	}
}

// Remove forgets the stream sessionID.
func (bus *Bus) Remove(sessionID string) {
	bus.mux.Lock()
	defer bus.mux.Unlock()

	bus.removeLocked(sessionID)
}

func (bus *Bus) removeLocked(sessionID string) {
	userID, ok := bus.userIds[sessionID]
	if !ok {
		return
	}

	delete(bus.userIds, sessionID)
	delete(bus.subscriptions[userID], sessionID)

	if len(bus.subscriptions[userID]) == 0 {
		delete(bus.subscriptions, userID)
	}
}

type Subscription struct {
	mux     sync.RWMutex
	filters map[string]*topic.TopicFilter
	session Sender
}

func (s *Subscription) add(filter *topic.TopicFilter) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.filters[filter.Value] = filter
}

func (s *Subscription) remove(filter *topic.TopicFilter) {
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.filters, filter.Value)
}

// send delivers the event once even when several filters match.
func (s *Subscription) send(event *Event) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	for _, filter := range s.filters {
		if filter.Match(event.Topic) {
			s.session.Send(&sse.Event{
				Topic: event.Topic.Value,
				Name:  event.Name,
				Data:  event.Data,
			})
			return
		}
	}
}
