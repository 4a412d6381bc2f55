package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMemoryStore_Contract(t *testing.T) {
	defer goleak.VerifyNone(t)
	runContract(t, func(*testing.T) CartRepository { return NewMemoryStore() })
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	item, err := store.AddItem(ctx, "u", 1, 1)
	require.NoError(t, err)
	item.Quantity = 99

	items, err := store.ListItems(ctx, "u")
	require.NoError(t, err)
	items[0].Quantity = 50

	got, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quantity)
}

func TestMemoryStore_UsesClock(t *testing.T) {
	store := NewMemoryStore()
	fixed := time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	item, err := store.AddItem(context.Background(), "u", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, fixed, item.CreatedAt)
}

// A user whose cart is locked must not hold up another user's operations.
func TestMemoryStore_UsersDoNotBlockEachOther(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.AddItem(ctx, "alice", 1, 1)
	require.NoError(t, err)

	alice := store.cart("alice", false)
	alice.mu.Lock()
	defer alice.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = store.AddItem(ctx, "bob", 1, 1)
		_, _ = store.ListItems(ctx, "bob")
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bob's operations blocked on alice's cart lock")
	}
}

func TestMemoryStore_ClearWhileAdding(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(p int64) {
			defer wg.Done()
			_, _ = store.AddItem(ctx, "u", p%5+1, 1)
		}(int64(i))
		go func() {
			defer wg.Done()
			_ = store.DeleteCart(ctx, "u")
		}()
	}
	wg.Wait()

	items, err := store.ListItems(ctx, "u")
	require.NoError(t, err)
	seen := map[int64]bool{}
	for _, item := range items {
		assert.False(t, seen[item.ProductID], "duplicate line item for product %d", item.ProductID)
		seen[item.ProductID] = true
		_, err := store.GetItem(ctx, item.ID)
		assert.NoError(t, err)
	}
}
