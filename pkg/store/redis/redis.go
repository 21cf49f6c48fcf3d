// Package redis provides a Redis-based implementation of the store interface.
//
// Interactions live in a sorted set scored by timestamp so recent reads are a
// single ZREVRANGE. Relationships live in a hash keyed by user. Topic
// preferences and exemplars are single JSON values.
package redis

import (
	"context"
	"encoding/json"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"github.com/personacore/personacore/pkg/store"
)

// Config holds configuration for RedisStore.
type Config struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore implements the store interface using Redis.
type RedisStore struct {
	client *goredis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, config *Config) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, &store.UnavailableError{Cause: err}
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "personacore"
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
	}, nil
}

func (r *RedisStore) interactionsKey() string {
	return r.prefix + ":interactions"
}

func (r *RedisStore) relationshipsKey() string {
	return r.prefix + ":relationships"
}

func (r *RedisStore) topicsKey() string {
	return r.prefix + ":learning:topics"
}

func (r *RedisStore) exemplarsKey() string {
	return r.prefix + ":learning:exemplars"
}

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

// InsertInteraction appends an interaction to the sorted set.
func (r *RedisStore) InsertInteraction(ctx context.Context, rec *store.InteractionRecord) error {
	data, err := serialize(rec)
	if err != nil {
		return err
	}

	err = r.client.ZAdd(ctx, r.interactionsKey(), goredis.Z{
		Score:  float64(rec.Timestamp.UnixNano()),
		Member: string(data),
	}).Err()
	if err != nil {
		return &store.UnavailableError{Cause: err}
	}
	return nil
}

// RecentInteractions returns up to limit interactions, newest first.
func (r *RedisStore) RecentInteractions(ctx context.Context, limit int) ([]*store.InteractionRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	members, err := r.client.ZRevRange(ctx, r.interactionsKey(), 0, stop).Result()
	if err != nil {
		return nil, &store.UnavailableError{Cause: err}
	}

	recs := make([]*store.InteractionRecord, 0, len(members))
	for _, member := range members {
		var rec store.InteractionRecord
		if err := deserialize([]byte(member), &rec); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, nil
}

// UpsertRelationship creates or replaces the relationship record for a user.
func (r *RedisStore) UpsertRelationship(ctx context.Context, rec *store.RelationshipRecord) error {
	data, err := serialize(rec)
	if err != nil {
		return err
	}

	if err := r.client.HSet(ctx, r.relationshipsKey(), rec.User, string(data)).Err(); err != nil {
		return &store.UnavailableError{Cause: err}
	}
	return nil
}

// Relationships returns all relationship records keyed by user.
func (r *RedisStore) Relationships(ctx context.Context) (map[string]*store.RelationshipRecord, error) {
	fields, err := r.client.HGetAll(ctx, r.relationshipsKey()).Result()
	if err != nil {
		return nil, &store.UnavailableError{Cause: err}
	}

	out := make(map[string]*store.RelationshipRecord, len(fields))
	for user, raw := range fields {
		var rec store.RelationshipRecord
		if err := deserialize([]byte(raw), &rec); err != nil {
			return nil, err
		}
		out[user] = &rec
	}
	return out, nil
}

// SaveTopicPreferences replaces the stored topic preference map.
func (r *RedisStore) SaveTopicPreferences(ctx context.Context, prefs map[string]float64) error {
	data, err := serialize(prefs)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.topicsKey(), data, 0).Err(); err != nil {
		return &store.UnavailableError{Cause: err}
	}
	return nil
}

// TopicPreferences returns the stored topic preference map.
func (r *RedisStore) TopicPreferences(ctx context.Context) (map[string]float64, error) {
	data, err := r.client.Get(ctx, r.topicsKey()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return map[string]float64{}, nil
	}
	if err != nil {
		return nil, &store.UnavailableError{Cause: err}
	}

	out := make(map[string]float64)
	if err := deserialize(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveExemplars replaces the stored successful-interaction log.
func (r *RedisStore) SaveExemplars(ctx context.Context, recs []*store.InteractionRecord) error {
	data, err := serialize(recs)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.exemplarsKey(), data, 0).Err(); err != nil {
		return &store.UnavailableError{Cause: err}
	}
	return nil
}

// Exemplars returns the stored successful-interaction log, oldest first.
func (r *RedisStore) Exemplars(ctx context.Context) ([]*store.InteractionRecord, error) {
	data, err := r.client.Get(ctx, r.exemplarsKey()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &store.UnavailableError{Cause: err}
	}

	var recs []*store.InteractionRecord
	if err := deserialize(data, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Ping verifies the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return &store.UnavailableError{Cause: err}
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
