package topic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timada-org/todos/pkg/topic"
)

func TestFilterValidate(t *testing.T) {
	valid := []string{
		"#",
		"todos",
		"todos/42",
		"todos/#",
		"todos/+",
		"+",
		"+/42",
		"+/+",
		"$SYS/#",
		"$SYS/session",
	}

	for _, value := range valid {
		t.Run(value, func(t *testing.T) {
			_, err := topic.NewFilter(value)
			require.NoError(t, err)
		})
	}

	invalid := []string{
		"",
		"todos#",
		"todos/#/42",
		"todos+",
	}

	for _, value := range invalid {
		t.Run("invalid "+value, func(t *testing.T) {
			_, err := topic.NewFilter(value)
			require.Error(t, err)
		})
	}
}

func TestFilterMatch(t *testing.T) {
	t.Run("todos/#", func(t *testing.T) {
		filter := topic.MustFilter("todos/#")

		assert.True(t, filter.Match(topic.MustName("todos")))
		assert.True(t, filter.Match(topic.MustName("todos/1")))
		assert.True(t, filter.Match(topic.MustName("todos/1/title")))
		assert.False(t, filter.Match(topic.MustName("auth")))
		assert.False(t, filter.Match(topic.MustName("todosx")))
	})

	t.Run("#", func(t *testing.T) {
		filter := topic.MustFilter("#")

		assert.True(t, filter.Match(topic.MustName("todos")))
		assert.True(t, filter.Match(topic.MustName("/")))
		assert.True(t, filter.Match(topic.MustName("abc/def")))
		assert.False(t, filter.Match(topic.MustName("$SYS")))
		assert.False(t, filter.Match(topic.MustName("$SYS/session")))
	})

	t.Run("+/1", func(t *testing.T) {
		filter := topic.MustFilter("+/1")

		assert.True(t, filter.Match(topic.MustName("todos/1")))
		assert.False(t, filter.Match(topic.MustName("todos/2")))
		assert.False(t, filter.Match(topic.MustName("$SYS/1")))
	})

	t.Run("todos/+", func(t *testing.T) {
		filter := topic.MustFilter("todos/+")

		assert.True(t, filter.Match(topic.MustName("todos/7")))
		assert.False(t, filter.Match(topic.MustName("todos")))
		assert.False(t, filter.Match(topic.MustName("todos/7/title")))
	})

	t.Run("$SYS/#", func(t *testing.T) {
		filter := topic.MustFilter("$SYS/#")

		assert.True(t, filter.Match(topic.MustName("$SYS/session")))
		assert.True(t, filter.Match(topic.MustName("$SYS")))
	})

	t.Run("exact", func(t *testing.T) {
		filter := topic.MustFilter("todos")

		assert.True(t, filter.Match(topic.MustName("todos")))
		assert.False(t, filter.Match(topic.MustName("todos/1")))
	})
}
