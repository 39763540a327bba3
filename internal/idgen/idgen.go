package idgen

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Message returns a sortable ULID string for inbound message IDs.
func Message() string {
	return ulid.Make().String()
}

// Task returns a random UUIDv4 string. The on-chain task registry keys tasks
// by this ID, and the execution service echoes it back as txUUID.
func Task() string {
	return uuid.NewString()
}
