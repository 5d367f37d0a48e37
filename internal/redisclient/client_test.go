package redisclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartRoundTrip(t *testing.T) {
	t.Skip("Integration test - requires Redis")

	client, err := NewClient("localhost:6379", "", 0)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	const buyerID = int64(123)

	require.NoError(t, client.SetCartLine(ctx, buyerID, 1, 2))
	require.NoError(t, client.SetCartLine(ctx, buyerID, 2, 1))

	cart, err := client.GetCart(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 2, 2: 1}, cart)

	// Zero quantity removes the line.
	require.NoError(t, client.SetCartLine(ctx, buyerID, 2, 0))
	cart, err = client.GetCart(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 2}, cart)

	require.NoError(t, client.ClearCart(ctx, buyerID))
	cart, err = client.GetCart(ctx, buyerID)
	require.NoError(t, err)
	assert.Empty(t, cart)
}
