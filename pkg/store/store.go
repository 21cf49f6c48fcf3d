// Package store provides the durable backing store abstraction for the
// personality system: an append-only interaction log and upserted
// relationship, topic, and exemplar records.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store defines the operations the memory system needs from a durable
// backend. Implementations must be safe for concurrent use.
type Store interface {
	// InsertInteraction appends an interaction to the durable log.
	InsertInteraction(ctx context.Context, rec *InteractionRecord) error

	// RecentInteractions returns up to limit interactions, newest first.
	RecentInteractions(ctx context.Context, limit int) ([]*InteractionRecord, error)

	// UpsertRelationship creates or replaces the relationship record for a user.
	UpsertRelationship(ctx context.Context, rec *RelationshipRecord) error

	// Relationships returns all relationship records keyed by user.
	Relationships(ctx context.Context) (map[string]*RelationshipRecord, error)

	// SaveTopicPreferences replaces the stored topic preference map.
	SaveTopicPreferences(ctx context.Context, prefs map[string]float64) error

	// TopicPreferences returns the stored topic preference map.
	TopicPreferences(ctx context.Context) (map[string]float64, error)

	// SaveExemplars replaces the stored successful-interaction log.
	SaveExemplars(ctx context.Context, recs []*InteractionRecord) error

	// Exemplars returns the stored successful-interaction log, oldest first.
	Exemplars(ctx context.Context) ([]*InteractionRecord, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// InteractionRecord is the persisted form of one interaction.
type InteractionRecord struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	User            string    `json:"user"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	Sentiment       float64   `json:"sentiment"`
	EngagementScore float64   `json:"engagement_score"`
}

// RelationshipRecord is the persisted form of one user relationship.
type RelationshipRecord struct {
	User             string    `json:"user"`
	Familiarity      float64   `json:"familiarity"`
	Sentiment        float64   `json:"sentiment"`
	InteractionCount int       `json:"interaction_count"`
	LastSeen         time.Time `json:"last_seen"`
}

// UnavailableError indicates that the storage backend is unreachable. The
// memory system treats it as a signal to degrade to in-memory-only operation.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %v", e.Cause)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// IsUnavailable reports whether err indicates backend unavailability.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// SerializationError indicates a failure encoding or decoding a record.
type SerializationError struct {
	Operation string
	Cause     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("store serialization error during %s: %v", e.Operation, e.Cause)
}

func (e *SerializationError) Unwrap() error {
	return e.Cause
}
