// Package events delivers todo change events to the change streams of their owner.
package events

import (
	"context"

	"github.com/timada-org/todos/pkg/topic"
)

type Event struct {
	UserID string           `json:"user_id"`
	Topic  *topic.TopicName `json:"topic"`
	Name   string           `json:"name"`
	Data   any              `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}
