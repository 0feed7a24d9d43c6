package store

import "github.com/google/uuid"

// GenNewID generates a new random UUID for store records (team/task/message
// IDs, trace span IDs, and now cron job IDs) that don't already have one.
func GenNewID() uuid.UUID {
	return uuid.New()
}
