package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageStatus is the lifecycle state of a message.
//
// Transitions: sent -> read (recipient retrieval or explicit mark-read,
// idempotent), sent -> archived and read -> archived (sender or recipient,
// terminal). ReadAt is stamped once on the first sent -> read transition and
// never cleared, including by archiving.
type MessageStatus string

const (
	MessageStatusSent     MessageStatus = "sent"
	MessageStatusRead     MessageStatus = "read"
	MessageStatusArchived MessageStatus = "archived"
)

// Message is a directed message between two users.
type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID    primitive.ObjectID `bson:"sender_id" json:"sender_id"`
	RecipientID primitive.ObjectID `bson:"recipient_id" json:"recipient_id"`
	Subject     string             `bson:"subject" json:"subject"`
	Body        string             `bson:"body" json:"body"`
	Status      MessageStatus      `bson:"status" json:"status"`
	SentAt      time.Time          `bson:"sent_at" json:"sent_at"`
	ReadAt      *time.Time         `bson:"read_at,omitempty" json:"read_at,omitempty"`
}

// MessageStats are per-user message counters.
type MessageStats struct {
	Received int64 `json:"total_received"`
	Sent     int64 `json:"total_sent"`
	Unread   int64 `json:"unread"`
	Archived int64 `json:"archived"`
}
