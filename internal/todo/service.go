package todo

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/timada-org/todos/internal/events"
)

const (
	Created = "Created"
	Toggled = "Toggled"
	Deleted = "Deleted"
)

type Publisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

// Service is the repository plus a change event after every write that
// touched a row.
type Service struct {
	repo      *Repository
	publisher Publisher
	logger    *log.Logger
}

func NewService(repo *Repository, publisher Publisher, logger *log.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("component", "todo"),
	}
}

func (s *Service) List(ctx context.Context, userID string) ([]Todo, error) {
	return s.repo.List(ctx, userID)
}

func (s *Service) Add(ctx context.Context, userID string, title string) (*Todo, error) {
	todo, err := s.repo.Add(ctx, userID, title)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, &events.Event{
		UserID: userID,
		Topic:  todo.Topic(),
		Name:   Created,
		Data:   todo,
	})

	return todo, nil
}

func (s *Service) Delete(ctx context.Context, userID string, todoID uint64) error {
	deleted, err := s.repo.Delete(ctx, userID, todoID)
	if err != nil {
		return err
	}

	if deleted {
		s.publish(ctx, &events.Event{
			UserID: userID,
			Topic:  topicFor(todoID),
			Name:   Deleted,
			Data:   map[string]any{"id": todoID},
		})
	}

	return nil
}

func (s *Service) ToggleCompletion(ctx context.Context, userID string, todoID uint64) error {
	todo, err := s.repo.ToggleCompletion(ctx, userID, todoID)
	if err != nil {
		return err
	}

	if todo != nil {
		s.publish(ctx, &events.Event{
			UserID: userID,
			Topic:  todo.Topic(),
			Name:   Toggled,
			Data:   todo,
		})
	}

	return nil
}

// The write is already committed, so a failed publish is only logged.
func (s *Service) publish(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish failed", "topic", event.Topic.Value, "name", event.Name, "err", err)
	}
}
