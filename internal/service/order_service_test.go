package service

import (
	"regexp"
	"testing"

	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateTotal(t *testing.T) {
	lines := []CartLine{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	}

	products := map[int64]*models.Product{
		1: {ID: 1, Price: 10000},
		2: {ID: 2, Price: 5000},
	}

	total := CalculateTotal(lines, products)

	expected := int64(2*10000 + 1*5000) // 25000
	assert.Equal(t, expected, total)
}

func TestApplyDiscountReducesTotal(t *testing.T) {
	order := &models.Order{TotalAmount: 10000}

	order.ApplyDiscount(2000, "SAVE20", 42)

	assert.Equal(t, int64(8000), order.TotalAmount)
	assert.Equal(t, int64(2000), order.DiscountAmount)
	require.True(t, order.DiscountCode.Valid)
	assert.Equal(t, "SAVE20", order.DiscountCode.String)
	require.True(t, order.AppliedRedemptionID.Valid)
	assert.Equal(t, int64(42), order.AppliedRedemptionID.Int64)
}

func TestApplyDiscountNeverGoesNegative(t *testing.T) {
	order := &models.Order{TotalAmount: 1500}

	order.ApplyDiscount(2000, "BIG", 7)

	assert.Equal(t, int64(0), order.TotalAmount)
	assert.Equal(t, int64(2000), order.DiscountAmount)
}

func TestGenerateOrderNumber(t *testing.T) {
	pattern := regexp.MustCompile(`^ORD-[0-9a-f]{8}$`)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		number := GenerateOrderNumber()
		assert.Regexp(t, pattern, number)
		seen[number] = true
	}

	// Collisions over 1000 draws from a 32-bit space are possible but
	// vanishingly unlikely; near-total uniqueness is enough here.
	assert.Greater(t, len(seen), 990)
}

func TestGroupBySellerOneGroupPerSeller(t *testing.T) {
	products := map[int64]*models.Product{
		1: {ID: 1, SellerUserID: 100},
		2: {ID: 2, SellerUserID: 100},
		3: {ID: 3, SellerUserID: 200},
	}
	items := []models.OrderItem{
		{ProductID: 1, ProductTitle: "Mug", Quantity: 2},
		{ProductID: 2, ProductTitle: "Plate", Quantity: 1},
		{ProductID: 3, ProductTitle: "Lamp", Quantity: 1},
	}

	groups := GroupBySeller(items, products)

	require.Len(t, groups, 2)
	assert.Equal(t, int64(100), groups[0].SellerUserID)
	assert.Equal(t, []string{"Mug", "Plate"}, groups[0].Titles)
	assert.Equal(t, 3, groups[0].ItemCount)
	assert.Equal(t, int64(200), groups[1].SellerUserID)
	assert.Equal(t, []string{"Lamp"}, groups[1].Titles)
	assert.Equal(t, 1, groups[1].ItemCount)
}

func TestSummarizeTitles(t *testing.T) {
	assert.Equal(t, "a", SummarizeTitles([]string{"a"}, 3))
	assert.Equal(t, "a, b, c", SummarizeTitles([]string{"a", "b", "c"}, 3))
	assert.Equal(t, "a, b, c +2 more", SummarizeTitles([]string{"a", "b", "c", "d", "e"}, 3))
}

func TestCheckoutPointsMath(t *testing.T) {
	// A $250.00 cart earns floor(250/100) = 2 base points; a 1.5x tier
	// turns that into 3.
	const pointsPerCents = int64(10000)

	total := int64(25000)
	basePoints := total / pointsPerCents
	assert.Equal(t, int64(2), basePoints)

	tier := &models.RewardTier{PointsMultiplier: 1.5}
	assert.Equal(t, int64(3), ApplyMultiplier(basePoints, tier))
}
