package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/personacore/personacore/pkg/store"
)

// TestRedisStoreSuite runs the full store test suite against RedisStore
// backed by an embedded miniredis server.
func TestRedisStoreSuite(t *testing.T) {
	suite := &store.TestSuite{
		NewStore: func(t *testing.T) store.Store {
			srv := miniredis.RunT(t)

			db, err := NewRedisStore(context.Background(), &Config{
				Address:   srv.Addr(),
				KeyPrefix: "test",
			})
			if err != nil {
				t.Fatalf("Failed to create RedisStore: %v", err)
			}

			return db
		},
	}

	suite.RunAllTests(t)
}

func TestRedisStore_ConnectFailureIsUnavailable(t *testing.T) {
	_, err := NewRedisStore(context.Background(), &Config{
		Address: "127.0.0.1:1", // nothing listens here
	})
	if err == nil {
		t.Fatal("Expected error connecting to closed port")
	}
	if !store.IsUnavailable(err) {
		t.Errorf("Expected UnavailableError, got %T", err)
	}
}

func TestRedisStore_ServerGoneIsUnavailable(t *testing.T) {
	srv := miniredis.RunT(t)

	db, err := NewRedisStore(context.Background(), &Config{Address: srv.Addr()})
	if err != nil {
		t.Fatalf("Failed to create RedisStore: %v", err)
	}
	defer db.Close()

	srv.Close()

	err = db.SaveTopicPreferences(context.Background(), map[string]float64{"a": 1})
	if err == nil {
		t.Fatal("Expected error after server shutdown")
	}
	if !store.IsUnavailable(err) {
		t.Errorf("Expected UnavailableError, got %T", err)
	}
}
