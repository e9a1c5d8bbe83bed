package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyflow/pkg/order"
)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	repo := New()

	o := order.Order{
		ID:    "ord_1",
		Email: "buyer@example.com",
		Items: []order.LineItem{{ProductID: "shadow-weekly", Quantity: 2}},
	}
	require.NoError(t, repo.Create(ctx, o))

	got, err := repo.Get(ctx, "ord_1")
	require.NoError(t, err)
	assert.Equal(t, o.Items, got.Items)
	assert.False(t, got.Fulfilled())

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestAttachClaimsOnce(t *testing.T) {
	ctx := context.Background()
	repo := New()
	require.NoError(t, repo.Create(ctx, order.Order{ID: "ord_1"}))

	claims := []order.ClaimedKey{{ProductID: "shadow-weekly", Key: "K1"}}
	require.NoError(t, repo.AttachClaims(ctx, "ord_1", claims))

	err := repo.AttachClaims(ctx, "ord_1", []order.ClaimedKey{{ProductID: "shadow-weekly", Key: "K2"}})
	assert.ErrorIs(t, err, order.ErrAlreadyFulfilled)

	got, err := repo.Get(ctx, "ord_1")
	require.NoError(t, err)
	assert.Equal(t, claims, got.Claims, "first write stands")
	assert.NotNil(t, got.FulfilledAt)
}

func TestAttachClaimsRaceHasOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := New()
	require.NoError(t, repo.Create(ctx, order.Order{ID: "ord_1"}))

	const racers = 8
	var wg sync.WaitGroup
	wins := make(chan int, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			claims := []order.ClaimedKey{{ProductID: "shadow-weekly", Key: "K"}}
			if err := repo.AttachClaims(ctx, "ord_1", claims); err == nil {
				wins <- i
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var n int
	for range wins {
		n++
	}
	assert.Equal(t, 1, n, "exactly one conditional write may win")
}

func TestRecordShortage(t *testing.T) {
	ctx := context.Background()
	repo := New()
	require.NoError(t, repo.Create(ctx, order.Order{ID: "ord_1"}))

	partial := []order.ClaimedKey{{ProductID: "shadow-weekly", Key: "W1"}}
	require.NoError(t, repo.RecordShortage(ctx, "ord_1", "shadow-monthly", partial))

	got, err := repo.Get(ctx, "ord_1")
	require.NoError(t, err)
	assert.Equal(t, "shadow-monthly", got.Shortage)
	assert.Equal(t, partial, got.Partial)

	// Once fulfilled, shortages may no longer be recorded.
	require.NoError(t, repo.AttachClaims(ctx, "ord_1", partial))
	err = repo.RecordShortage(ctx, "ord_1", "shadow-monthly", partial)
	assert.ErrorIs(t, err, order.ErrAlreadyFulfilled)
}
