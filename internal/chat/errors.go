package chat

import (
	"errors"
	"fmt"
)

// QuotaExceededError reports an exhausted daily allowance for a named
// capability (requests, search, imagine, doc, img).
type QuotaExceededError struct {
	Feature string
	Limit   int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily %s limit reached (%d)", e.Feature, e.Limit)
}

// ErrTokenLimitExceeded means the turn would not fit in the daily token
// budget, either at the pre-check or once the reply size was known. In the
// latter case the reply has already been discarded.
var ErrTokenLimitExceeded = errors.New("daily token limit exceeded")

// ErrEmptyMessage rejects input with no usable text.
var ErrEmptyMessage = errors.New("empty message")
