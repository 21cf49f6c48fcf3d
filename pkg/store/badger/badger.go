// Package badger provides a Badger-based implementation of the store interface.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/personacore/personacore/pkg/store"
)

// Config holds configuration for BadgerStore.
type Config struct {
	Path             string
	SyncWrites       bool
	ValueLogFileSize int64
}

// BadgerStore implements the store interface using Badger.
type BadgerStore struct {
	db     *badger.DB
	config *Config
}

// NewBadgerStore opens a Badger database at the configured path.
func NewBadgerStore(config *Config) (*BadgerStore, error) {
	opts := badger.DefaultOptions(config.Path)
	opts.SyncWrites = config.SyncWrites
	if config.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = config.ValueLogFileSize
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &store.UnavailableError{Cause: err}
	}

	return &BadgerStore{
		db:     db,
		config: config,
	}, nil
}

// Key generation functions. Interaction keys embed the nanosecond timestamp
// so reverse iteration yields newest-first order.
func interactionKey(rec *store.InteractionRecord) []byte {
	return []byte(fmt.Sprintf("interaction:%020d:%s", rec.Timestamp.UnixNano(), rec.ID))
}

func relationshipKey(user string) []byte {
	return []byte(fmt.Sprintf("rel:%s", user))
}

var (
	topicsKey    = []byte("learning:topics")
	exemplarsKey = []byte("learning:exemplars")
)

// Serialization helpers
func serialize(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &store.SerializationError{
			Operation: "marshal",
			Cause:     err,
		}
	}
	return data, nil
}

func deserialize(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &store.SerializationError{
			Operation: "unmarshal",
			Cause:     err,
		}
	}
	return nil
}

// wrapDBErr classifies raw Badger errors as availability failures.
// Serialization errors pass through unchanged.
func wrapDBErr(err error) error {
	if err == nil {
		return nil
	}
	var serr *store.SerializationError
	if errors.As(err, &serr) {
		return err
	}
	return &store.UnavailableError{Cause: err}
}

// InsertInteraction appends an interaction to the log.
func (b *BadgerStore) InsertInteraction(ctx context.Context, rec *store.InteractionRecord) error {
	data, err := serialize(rec)
	if err != nil {
		return err
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(interactionKey(rec), data)
	})
	return wrapDBErr(err)
}

// RecentInteractions returns up to limit interactions, newest first.
func (b *BadgerStore) RecentInteractions(ctx context.Context, limit int) ([]*store.InteractionRecord, error) {
	var recs []*store.InteractionRecord

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("interaction:")
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must seek past the end of the prefix range.
		seek := append([]byte("interaction:"), 0xFF)
		for it.Seek(seek); it.Valid(); it.Next() {
			if limit > 0 && len(recs) >= limit {
				break
			}

			var rec store.InteractionRecord
			err := it.Item().Value(func(val []byte) error {
				return deserialize(val, &rec)
			})
			if err != nil {
				return err
			}
			recs = append(recs, &rec)
		}

		return nil
	})

	if err != nil {
		return nil, wrapDBErr(err)
	}
	return recs, nil
}

// UpsertRelationship creates or replaces the relationship record for a user.
func (b *BadgerStore) UpsertRelationship(ctx context.Context, rec *store.RelationshipRecord) error {
	data, err := serialize(rec)
	if err != nil {
		return err
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(relationshipKey(rec.User), data)
	})
	return wrapDBErr(err)
}

// Relationships returns all relationship records keyed by user.
func (b *BadgerStore) Relationships(ctx context.Context) (map[string]*store.RelationshipRecord, error) {
	out := make(map[string]*store.RelationshipRecord)

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("rel:")

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec store.RelationshipRecord
			err := it.Item().Value(func(val []byte) error {
				return deserialize(val, &rec)
			})
			if err != nil {
				return err
			}
			out[rec.User] = &rec
		}

		return nil
	})

	if err != nil {
		return nil, wrapDBErr(err)
	}
	return out, nil
}

// SaveTopicPreferences replaces the stored topic preference map.
func (b *BadgerStore) SaveTopicPreferences(ctx context.Context, prefs map[string]float64) error {
	data, err := serialize(prefs)
	if err != nil {
		return err
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(topicsKey, data)
	})
	return wrapDBErr(err)
}

// TopicPreferences returns the stored topic preference map.
func (b *BadgerStore) TopicPreferences(ctx context.Context) (map[string]float64, error) {
	out := make(map[string]float64)

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(topicsKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return deserialize(val, &out)
		})
	})

	if err != nil {
		return nil, wrapDBErr(err)
	}
	return out, nil
}

// SaveExemplars replaces the stored successful-interaction log.
func (b *BadgerStore) SaveExemplars(ctx context.Context, recs []*store.InteractionRecord) error {
	data, err := serialize(recs)
	if err != nil {
		return err
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(exemplarsKey, data)
	})
	return wrapDBErr(err)
}

// Exemplars returns the stored successful-interaction log, oldest first.
func (b *BadgerStore) Exemplars(ctx context.Context) ([]*store.InteractionRecord, error) {
	var recs []*store.InteractionRecord

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(exemplarsKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return deserialize(val, &recs)
		})
	})

	if err != nil {
		return nil, wrapDBErr(err)
	}
	return recs, nil
}

// Ping verifies the database is still writable.
func (b *BadgerStore) Ping(ctx context.Context) error {
	err := b.db.View(func(txn *badger.Txn) error {
		return nil
	})
	return wrapDBErr(err)
}

// Close closes the Badger database.
func (b *BadgerStore) Close() error {
	if err := b.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
		// GC failure is not fatal on close
	}

	return b.db.Close()
}
