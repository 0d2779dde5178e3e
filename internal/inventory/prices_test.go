package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stockpile/internal/subsystem"
	"github.com/roach88/stockpile/internal/testutil"
)

func TestGetItemPrices(t *testing.T) {
	fake := testutil.NewFakeInventory()
	fake.Prices = []subsystem.RawPrice{
		{Definition: 5, Price: 199, BasePrice: 249},
		{Definition: 6, Price: 50, BasePrice: 50},
	}
	te := setupEngine(t, fake)

	prices, err := te.GetItemPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Price{
		{Definition: 5, Price: 199, BasePrice: 249},
		{Definition: 6, Price: 50, BasePrice: 50},
	}, prices)
	assert.Equal(t, []testutil.Call{
		{Op: testutil.OpSizePrices, Detail: "count=2"},
		{Op: testutil.OpFillPrices, Detail: "capacity=2 count=2"},
	}, fake.Calls())
}

func TestGetItemPrices_Empty(t *testing.T) {
	te := setupEngine(t, nil)

	prices, err := te.GetItemPrices(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, prices)
	assert.Empty(t, prices)
	assert.Equal(t, 0, te.fake.CallCount(testutil.OpFillPrices))
}

func TestGetItemPrices_Fails(t *testing.T) {
	fake := testutil.NewFakeInventory()
	fake.PricesFail = true
	te := setupEngine(t, fake)

	prices, err := te.GetItemPrices(context.Background())
	assert.Nil(t, prices)
	assert.ErrorIs(t, err, ErrGetResultItemsFailed)
	assert.Empty(t, te.PendingHandles())
}
