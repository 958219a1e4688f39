package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/pulsekeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags,omitempty"`
}

// runContract exercises the behaviour every DocumentStore must share.
func runContract(t *testing.T, newStore func(t *testing.T) DocumentStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("create then read", func(t *testing.T) {
		s := newStore(t)
		in := record{Name: "a", Count: 1, Tags: []string{"x"}}
		require.NoError(t, s.Create(ctx, "things", "k1", in))

		var out record
		require.NoError(t, s.Read(ctx, "things", "k1", &out))
		assert.Equal(t, in, out)
	})

	t.Run("create is exclusive", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, "things", "k1", record{Name: "first"}))

		err := s.Create(ctx, "things", "k1", record{Name: "second"})
		assert.True(t, errors.Is(err, common.ErrorAlreadyExists), "got %v", err)

		var out record
		require.NoError(t, s.Read(ctx, "things", "k1", &out))
		assert.Equal(t, "first", out.Name)
	})

	t.Run("read missing", func(t *testing.T) {
		s := newStore(t)
		var out record
		err := s.Read(ctx, "things", "nope", &out)
		assert.True(t, errors.Is(err, common.ErrorNotFound), "got %v", err)
	})

	t.Run("update replaces", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, "things", "k1", record{Name: "long name", Tags: []string{"a", "b", "c"}}))
		require.NoError(t, s.Update(ctx, "things", "k1", record{Name: "x"}))

		var out record
		require.NoError(t, s.Read(ctx, "things", "k1", &out))
		assert.Equal(t, record{Name: "x"}, out)
	})

	t.Run("update missing", func(t *testing.T) {
		s := newStore(t)
		err := s.Update(ctx, "things", "nope", record{})
		assert.True(t, errors.Is(err, common.ErrorNotFound), "got %v", err)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, "things", "k1", record{}))
		require.NoError(t, s.Delete(ctx, "things", "k1"))

		var out record
		assert.True(t, errors.Is(s.Read(ctx, "things", "k1", &out), common.ErrorNotFound))
		assert.True(t, errors.Is(s.Delete(ctx, "things", "k1"), common.ErrorNotFound))

		// the key is free again
		require.NoError(t, s.Create(ctx, "things", "k1", record{Name: "again"}))
	})

	t.Run("collections are separate namespaces", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, "accounts", "same", record{Name: "account"}))
		require.NoError(t, s.Create(ctx, "checks", "same", record{Name: "check"}))

		var out record
		require.NoError(t, s.Read(ctx, "accounts", "same", &out))
		assert.Equal(t, "account", out.Name)
	})

	t.Run("keys", func(t *testing.T) {
		s := newStore(t)
		keys, err := s.Keys(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, keys)

		for _, k := range []string{"b", "a", "c"} {
			require.NoError(t, s.Create(ctx, "things", k, record{}))
		}
		keys, err = s.Keys(ctx, "things")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, keys)
	})

	t.Run("invalid names", func(t *testing.T) {
		s := newStore(t)
		for _, tc := range []struct{ collection, key string }{
			{"", "k"}, {"things", ""}, {"things", "../escape"}, {"things", ".hidden"}, {"a/b", "k"},
		} {
			err := s.Create(ctx, tc.collection, tc.key, record{})
			assert.True(t, errors.Is(err, common.ErrorInvalidInput), "%q/%q: got %v", tc.collection, tc.key, err)
		}
	})

	t.Run("concurrent creates have one winner", func(t *testing.T) {
		s := newStore(t)
		const n = 16

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			wins    int
			dupes   int
			unknown []error
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.Create(ctx, "things", "race", record{Count: i})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, common.ErrorAlreadyExists):
					dupes++
				default:
					unknown = append(unknown, err)
				}
			}(i)
		}
		wg.Wait()

		assert.Empty(t, unknown)
		assert.Equal(t, 1, wins)
		assert.Equal(t, n-1, dupes)
	})
}
