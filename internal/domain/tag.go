package domain

import "time"

// Tag is a followable recipe topic, unique by name. Created on demand
// during the interests step.
type Tag struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}
