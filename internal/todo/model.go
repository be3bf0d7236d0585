package todo

import (
	"fmt"
	"time"

	"github.com/timada-org/todos/pkg/topic"
)

type Todo struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Title     string    `json:"title" gorm:"not null"`
	Completed bool      `json:"completed" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"createdAt"`
	UserID    string    `json:"userId" gorm:"not null;index"`
}

// Topic is the change-stream topic of the todo, "todos/<id>".
func (t *Todo) Topic() *topic.TopicName {
	return topicFor(t.ID)
}

func topicFor(id uint64) *topic.TopicName {
	return topic.MustName(fmt.Sprintf("todos/%d", id))
}
