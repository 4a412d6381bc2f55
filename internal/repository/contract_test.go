package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract exercises the CartRepository contract against a fresh store.
func runContract(t *testing.T, newRepo func(t *testing.T) CartRepository) {
	t.Run("ListItems_UnknownUser", func(t *testing.T) {
		repo := newRepo(t)
		items, err := repo.ListItems(context.Background(), "nobody")
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	t.Run("AddItem_NewItem", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		item, err := repo.AddItem(ctx, "user123", 1, 3)
		require.NoError(t, err)
		assert.NotEmpty(t, item.ID)
		assert.Equal(t, "user123", item.UserID)
		assert.Equal(t, int64(1), item.ProductID)
		assert.Equal(t, 3, item.Quantity)
		assert.False(t, item.CreatedAt.IsZero())
	})

	t.Run("AddItem_ExistingItem_MergesQuantity", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		first, err := repo.AddItem(ctx, "user123", 1, 2)
		require.NoError(t, err)
		second, err := repo.AddItem(ctx, "user123", 1, 5)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 7, second.Quantity)

		items, err := repo.ListItems(ctx, "user123")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 7, items[0].Quantity)
	})

	t.Run("AddItem_SameProductDifferentUsers", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		a, err := repo.AddItem(ctx, "alice", 1, 1)
		require.NoError(t, err)
		b, err := repo.AddItem(ctx, "bob", 1, 1)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("AddItem_AboveMaxQuantity", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.AddItem(ctx, "user123", 1, domain.MaxQuantity+1)
		assert.ErrorIs(t, err, ErrQuantityLimit)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		items, err := repo.ListItems(ctx, "user123")
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("AddItem_MergeAboveMaxQuantity_LeavesItemUnchanged", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		item, err := repo.AddItem(ctx, "user123", 1, domain.MaxQuantity)
		require.NoError(t, err)
		assert.Equal(t, domain.MaxQuantity, item.Quantity)

		_, err = repo.AddItem(ctx, "user123", 1, 1)
		assert.ErrorIs(t, err, ErrQuantityLimit)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		items, err := repo.ListItems(ctx, "user123")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, item.ID, items[0].ID)
		assert.Equal(t, domain.MaxQuantity, items[0].Quantity)
	})

	t.Run("AddItem_MergeUpToMaxQuantity", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.AddItem(ctx, "user123", 1, domain.MaxQuantity-1)
		require.NoError(t, err)
		merged, err := repo.AddItem(ctx, "user123", 1, 1)
		require.NoError(t, err)
		assert.Equal(t, domain.MaxQuantity, merged.Quantity)
	})

	t.Run("ListItems_InsertionOrder", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for _, productID := range []int64{5, 2, 9} {
			_, err := repo.AddItem(ctx, "user123", productID, 1)
			require.NoError(t, err)
		}
		_, err := repo.AddItem(ctx, "user123", 2, 1)
		require.NoError(t, err)

		items, err := repo.ListItems(ctx, "user123")
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, int64(5), items[0].ProductID)
		assert.Equal(t, int64(2), items[1].ProductID)
		assert.Equal(t, int64(9), items[2].ProductID)
	})

	t.Run("UpdateItemQuantity", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		item, err := repo.AddItem(ctx, "user123", 1, 2)
		require.NoError(t, err)

		updated, err := repo.UpdateItemQuantity(ctx, item.ID, 10)
		require.NoError(t, err)
		assert.Equal(t, item.ID, updated.ID)
		assert.Equal(t, 10, updated.Quantity)

		got, err := repo.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, got.Quantity)
	})

	t.Run("UpdateItemQuantity_NotFound", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.UpdateItemQuantity(context.Background(), domain.NewLineItemID(), 1)
		assert.ErrorIs(t, err, ErrItemNotFound)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("UpdateItemQuantity_AboveMaxQuantity", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		item, err := repo.AddItem(ctx, "user123", 1, 2)
		require.NoError(t, err)

		_, err = repo.UpdateItemQuantity(ctx, item.ID, domain.MaxQuantity+1)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		got, err := repo.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Quantity)
	})

	t.Run("RemoveItem_Twice", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		item, err := repo.AddItem(ctx, "user123", 1, 2)
		require.NoError(t, err)
		_, err = repo.AddItem(ctx, "user123", 2, 3)
		require.NoError(t, err)

		removed, err := repo.RemoveItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "user123", removed.UserID)

		_, err = repo.RemoveItem(ctx, item.ID)
		assert.ErrorIs(t, err, ErrItemNotFound)

		items, err := repo.ListItems(ctx, "user123")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, int64(2), items[0].ProductID)
	})

	t.Run("AddItem_AfterRemove_CreatesNewItem", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		item, err := repo.AddItem(ctx, "user123", 1, 2)
		require.NoError(t, err)
		_, err = repo.RemoveItem(ctx, item.ID)
		require.NoError(t, err)

		again, err := repo.AddItem(ctx, "user123", 1, 1)
		require.NoError(t, err)
		assert.NotEqual(t, item.ID, again.ID)
		assert.Equal(t, 1, again.Quantity)
	})

	t.Run("DeleteCart", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		item, err := repo.AddItem(ctx, "user123", 1, 2)
		require.NoError(t, err)
		_, err = repo.AddItem(ctx, "other", 1, 2)
		require.NoError(t, err)

		require.NoError(t, repo.DeleteCart(ctx, "user123"))

		items, err := repo.ListItems(ctx, "user123")
		require.NoError(t, err)
		assert.Empty(t, items)

		_, err = repo.GetItem(ctx, item.ID)
		assert.ErrorIs(t, err, ErrItemNotFound)

		others, err := repo.ListItems(ctx, "other")
		require.NoError(t, err)
		assert.Len(t, others, 1)
	})

	t.Run("DeleteCart_EmptyCart", func(t *testing.T) {
		repo := newRepo(t)
		assert.NoError(t, repo.DeleteCart(context.Background(), "nobody"))
	})

	t.Run("AddItem_Concurrent_SinglePair", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		const workers = 16
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.AddItem(ctx, "user1", 42, 1)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		items, err := repo.ListItems(ctx, "user1")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, workers, items[0].Quantity)
	})

	t.Run("UpdateAndRemove_Concurrent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		item, err := repo.AddItem(ctx, "user1", 7, 1)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var removed int
		var mu sync.Mutex
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func(q int) {
				defer wg.Done()
				_, _ = repo.UpdateItemQuantity(ctx, item.ID, q)
			}(i + 1)
			go func() {
				defer wg.Done()
				if _, err := repo.RemoveItem(ctx, item.ID); err == nil {
					mu.Lock()
					removed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, removed, "exactly one remove must win")
		items, err := repo.ListItems(ctx, "user1")
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}
