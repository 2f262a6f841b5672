package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/driftdev/drift/domain/pattern"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Common field constructors for pattern repository logging.

// PatternID adds a pattern ID field.
func PatternID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("pattern_id", id)
	}
}

// Category adds a category field.
func Category(c pattern.Category) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("category", string(c))
	}
}

// Status adds a status field.
func Status(s pattern.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("status", string(s))
	}
}

// FromStatus adds a from_status field for transitions.
func FromStatus(s pattern.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("from_status", string(s))
	}
}

// ToStatus adds a to_status field for transitions.
func ToStatus(s pattern.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("to_status", string(s))
	}
}

// File adds a file path field.
func File(path string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("file", path)
	}
}

// Count adds a count field.
func Count(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("count", n)
	}
}

// Confidence adds a confidence score field.
func Confidence(c float64) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Float64("confidence", c)
	}
}

// Approver adds an approver field.
func Approver(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("approver", name)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// Cached adds a cached field.
func Cached(cached bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool("cached", cached)
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}

// Bool adds a boolean field with custom key.
func Bool(key string, value bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool(key, value)
	}
}
