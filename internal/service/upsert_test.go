package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/catalogx/internal/domain"
)

func TestUpsertProductsLastWriteWinsInBatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	seed := h.engine.UpsertProducts(ctx, companyID, []domain.ProductInput{{ExternalID: "P1", Name: "Old"}})
	require.True(t, seed[0].OK())
	existingID := seed[0].ID

	results := h.engine.UpsertProducts(ctx, companyID, []domain.ProductInput{
		{ExternalID: "P1", Name: "A"},
		{ExternalID: "P1", Name: "B"},
		{ExternalID: "P2", Name: "C"},
	})
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.True(t, r.OK(), "item %d: %v", i, r.Err)
	}
	assert.Equal(t, existingID, results[0].ID)
	assert.Equal(t, existingID, results[1].ID)
	assert.NotEqual(t, existingID, results[2].ID)
	assert.Equal(t, "P2", results[2].ExternalID)

	p1, err := h.products.GetByExternalID(ctx, companyID, "P1")
	require.NoError(t, err)
	assert.Equal(t, "B", p1.Name)

	count, err := h.products.CountByCompany(ctx, companyID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestUpsertProductsByID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created := h.engine.UpsertProducts(ctx, companyID, []domain.ProductInput{{Name: "No key"}})
	require.True(t, created[0].OK())
	assert.Empty(t, created[0].ExternalID)

	results := h.engine.UpsertProducts(ctx, companyID, []domain.ProductInput{
		{ID: created[0].ID, ExternalID: "EXT-9", Name: "Renamed", Archive: true},
		{ID: "missing", Name: "Ghost"},
		{ExternalID: "EXT-10"},
	})

	require.True(t, results[0].OK())
	assert.Equal(t, created[0].ID, results[0].ID)
	assert.Equal(t, "EXT-9", results[0].ExternalID)

	require.NotNil(t, results[1].Err)
	assert.Equal(t, domain.CodeNotFound, results[1].Err.Code)
	assert.Equal(t, 1, results[1].Err.Index)

	require.NotNil(t, results[2].Err)
	assert.Equal(t, domain.CodeValidation, results[2].Err.Code)

	p, err := h.products.GetByID(ctx, companyID, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)
	assert.True(t, p.Archive)
}

func TestUpsertProductsExternalIDTakesPrecedenceOverID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	seed := h.engine.UpsertProducts(ctx, companyID, []domain.ProductInput{
		{ExternalID: "P1", Name: "Keyed"},
		{Name: "Unkeyed"},
	})
	require.True(t, seed[0].OK())
	require.True(t, seed[1].OK())
	keyedID, unkeyedID := seed[0].ID, seed[1].ID

	results := h.engine.UpsertProducts(ctx, companyID, []domain.ProductInput{
		{ID: unkeyedID, ExternalID: "P1", Name: "New"},
	})
	require.True(t, results[0].OK(), "%v", results[0].Err)
	assert.Equal(t, keyedID, results[0].ID)
	assert.Equal(t, "P1", results[0].ExternalID)

	keyed, err := h.products.GetByID(ctx, companyID, keyedID)
	require.NoError(t, err)
	assert.Equal(t, "New", keyed.Name)

	unkeyed, err := h.products.GetByID(ctx, companyID, unkeyedID)
	require.NoError(t, err)
	assert.Equal(t, "Unkeyed", unkeyed.Name)
	assert.Nil(t, unkeyed.ExternalID)
}

func seedPriceCatalog(t *testing.T, h *harness, n int) {
	t.Helper()
	ctx := context.Background()
	inputs := make([]domain.ProductInput, n)
	for i := range inputs {
		inputs[i] = domain.ProductInput{ExternalID: fmt.Sprintf("P%d", i), Name: fmt.Sprintf("Product %d", i)}
	}
	for _, r := range h.engine.UpsertProducts(ctx, companyID, inputs) {
		require.True(t, r.OK())
	}
	for _, r := range h.engine.UpsertPriceTypes(ctx, companyID, []domain.PriceTypeInput{{ExternalID: "retail", Name: "Retail", Currency: "RUB"}}) {
		require.True(t, r.OK())
	}
	for _, r := range h.engine.UpsertStocks(ctx, companyID, []domain.StockLocationInput{{ExternalID: "main", Name: "Main"}}) {
		require.True(t, r.OK())
	}
}

func TestUpsertPricesPartialFailureIsolated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedPriceCatalog(t, h, 10)

	pt, err := h.prices.ResolveType(ctx, companyID, "", "retail")
	require.NoError(t, err)

	inputs := make([]domain.PriceInput, 10)
	for i := range inputs {
		p, err := h.products.GetByExternalID(ctx, companyID, fmt.Sprintf("P%d", i))
		require.NoError(t, err)
		inputs[i] = domain.PriceInput{ProductID: p.ID, PriceTypeID: pt.ID, Price: decimal.NewFromInt(int64(100 + i))}
	}
	inputs[5].ProductID = "does-not-exist"

	results := h.engine.UpsertPrices(ctx, companyID, inputs)
	require.Len(t, results, 10)

	succeeded, failed, transient := domain.Summarize(results)
	assert.Equal(t, 9, succeeded)
	assert.Equal(t, 1, failed)
	assert.False(t, transient)

	require.NotNil(t, results[5].Err)
	assert.Equal(t, 5, results[5].Index)
	assert.Equal(t, 5, results[5].Err.Index)
	assert.Equal(t, domain.CodeNotFound, results[5].Err.Code)

	for i, r := range results {
		if i == 5 {
			continue
		}
		assert.Equal(t, i, r.Index)
		assert.Equal(t, inputs[i].ProductID, r.ProductID)
		assert.Equal(t, pt.ID, r.PriceTypeID)
		require.NotNil(t, r.Price)
		assert.True(t, r.Price.Equal(inputs[i].Price))

		rec, err := h.prices.GetRecord(ctx, r.ProductID, pt.ID)
		require.NoError(t, err)
		assert.Equal(t, "RUB", rec.Currency, "currency defaults to the price type's")
	}
}

func TestUpsertPricesAndStocksIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedPriceCatalog(t, h, 1)

	prices := []domain.PriceInput{{ProductExternalID: "P0", PriceTypeExternalID: "retail", Price: decimal.RequireFromString("10.50")}}
	stocks := []domain.StockInput{{ProductExternalID: "P0", StockExternalID: "main", Quantity: decimal.RequireFromString("3.5")}}

	for round := 0; round < 2; round++ {
		for _, r := range h.engine.UpsertPrices(ctx, companyID, prices) {
			require.True(t, r.OK(), "round %d: %v", round, r.Err)
		}
		for _, r := range h.engine.UpsertStockBalances(ctx, companyID, stocks) {
			require.True(t, r.OK(), "round %d: %v", round, r.Err)
		}
	}

	p, err := h.products.GetByExternalID(ctx, companyID, "P0")
	require.NoError(t, err)

	nPrices, err := h.prices.CountRecords(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, nPrices)
	nBalances, err := h.stocks.CountBalances(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, nBalances)

	prices[0].Price = decimal.RequireFromString("12")
	require.True(t, h.engine.UpsertPrices(ctx, companyID, prices)[0].OK())

	st, err := h.stocks.ResolveStock(ctx, companyID, "", "main")
	require.NoError(t, err)
	bal, err := h.stocks.GetBalance(ctx, p.ID, st.ID)
	require.NoError(t, err)
	assert.True(t, bal.Quantity.Equal(decimal.RequireFromString("3.5")))

	pt, err := h.prices.ResolveType(ctx, companyID, "", "retail")
	require.NoError(t, err)
	rec, err := h.prices.GetRecord(ctx, p.ID, pt.ID)
	require.NoError(t, err)
	assert.True(t, rec.Price.Equal(decimal.NewFromInt(12)))
}

func TestUpsertValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedPriceCatalog(t, h, 1)

	prices := h.engine.UpsertPrices(ctx, companyID, []domain.PriceInput{
		{ProductExternalID: "P0", PriceTypeExternalID: "retail", Price: decimal.NewFromInt(-1)},
		{PriceTypeExternalID: "retail", Price: decimal.NewFromInt(1)},
		{ProductExternalID: "P0", PriceTypeExternalID: "wholesale", Price: decimal.NewFromInt(1)},
	})
	require.NotNil(t, prices[0].Err)
	assert.Equal(t, domain.CodeValidation, prices[0].Err.Code)
	require.NotNil(t, prices[1].Err)
	assert.Equal(t, domain.CodeValidation, prices[1].Err.Code)
	require.NotNil(t, prices[2].Err)
	assert.Equal(t, domain.CodeNotFound, prices[2].Err.Code)

	stocks := h.engine.UpsertStockBalances(ctx, companyID, []domain.StockInput{
		{ProductExternalID: "P0"},
	})
	require.NotNil(t, stocks[0].Err)
	assert.Equal(t, domain.CodeValidation, stocks[0].Err.Code)
}

func TestUpsertReferencesAreCompanyScoped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedPriceCatalog(t, h, 1)

	results := h.engine.UpsertPrices(ctx, "company-2", []domain.PriceInput{
		{ProductExternalID: "P0", PriceTypeExternalID: "retail", Price: decimal.NewFromInt(1)},
	})
	require.NotNil(t, results[0].Err)
	assert.Equal(t, domain.CodeNotFound, results[0].Err.Code)
}

func TestUpsertEmptyBatch(t *testing.T) {
	h := newHarness(t)
	assert.Empty(t, h.engine.UpsertProducts(context.Background(), companyID, nil))
}
