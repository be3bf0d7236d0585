package topic

import (
	"fmt"
	"regexp"
	"strings"
)

var topicFilterRegex = regexp.MustCompile(`^(([^+#]*|\+)(/([^+#]*|\+))*(/#)?|#)$`)

// All matches every topic that is not server specific.
const All = "#"

// TopicFilter selects topic names. "+" matches exactly one level, a trailing
// "#" matches the parent level and everything below it.
type TopicFilter struct {
	Value string `json:"value"`
}

func NewFilter(value string) (*TopicFilter, error) {
	if value == "" {
		return nil, fmt.Errorf("topic filter: %q cannot be empty", value)
	}

	if len(value) > maxLength {
		return nil, fmt.Errorf("topic filter: %q cannot have more than %d bytes", value, maxLength)
	}

	if !topicFilterRegex.MatchString(value) {
		return nil, fmt.Errorf("topic filter: %q format is invalid", value)
	}

	return &TopicFilter{value}, nil
}

// MustFilter is NewFilter for compile-time constants.
func MustFilter(value string) *TopicFilter {
	filter, err := NewFilter(value)
	if err != nil {
		panic(err)
	}

	return filter
}

func (t *TopicFilter) String() string {
	return t.Value
}

// Match reports whether name is selected by the filter. Wildcards at the
// first level never match server specific ("$") names.
func (t *TopicFilter) Match(name *TopicName) bool {
	levels := strings.Split(name.Value, "/")
	patterns := strings.Split(t.Value, "/")

	if name.IsServerSpecific() && patterns[0] != levels[0] {
		return false
	}

	for i, pattern := range patterns {
		if pattern == "#" {
			return true
		}

		if i >= len(levels) {
			return false
		}

		if pattern != "+" && pattern != levels[i] {
			return false
		}
	}

	return len(levels) == len(patterns)
}
