package memory

import (
	"testing"

	"github.com/personacore/personacore/pkg/store"
)

func TestMemoryStore(t *testing.T) {
	suite := &store.TestSuite{
		NewStore: func(t *testing.T) store.Store {
			return NewMemoryStore()
		},
	}
	suite.RunAllTests(t)
}
