package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ProductInput is one product to create or update. A product is matched by ID
// first, then by ExternalID within the company; otherwise it is created.
type ProductInput struct {
	ID          string `json:"id,omitempty" validate:"omitempty,max=64"`
	ExternalID  string `json:"externalId,omitempty" validate:"omitempty,max=255"`
	Name        string `json:"name" validate:"required,max=512"`
	Number      string `json:"number,omitempty" validate:"max=255"`
	Brand       string `json:"brand,omitempty" validate:"max=255"`
	BrandNumber string `json:"brandNumber,omitempty" validate:"max=255"`
	Unit        string `json:"unit,omitempty" validate:"max=64"`
	Description string `json:"description,omitempty"`
	Archive     bool   `json:"archive"`
}

// NaturalKey returns the key items are serialized on; empty means the item stands alone.
func (in ProductInput) NaturalKey() string {
	if ext := strings.TrimSpace(in.ExternalID); ext != "" {
		return "ext:" + ext
	}
	if in.ID != "" {
		return "id:" + in.ID
	}
	return ""
}

// PriceInput sets the price of a product in a price type. Both references accept
// either an internal id or an external id.
type PriceInput struct {
	ProductID           string          `json:"productId,omitempty" validate:"required_without=ProductExternalID"`
	ProductExternalID   string          `json:"productExternalId,omitempty"`
	PriceTypeID         string          `json:"priceTypeId,omitempty" validate:"required_without=PriceTypeExternalID"`
	PriceTypeExternalID string          `json:"priceTypeExternalId,omitempty"`
	Price               decimal.Decimal `json:"price" validate:"gte=0"`
	Currency            string          `json:"currency,omitempty" validate:"max=16"`
}

// NaturalKey is the (product, price type) reference pair.
func (in PriceInput) NaturalKey() string {
	return refKey(in.ProductID, in.ProductExternalID) + "|" + refKey(in.PriceTypeID, in.PriceTypeExternalID)
}

// StockInput sets the quantity of a product held in a stock.
type StockInput struct {
	ProductID         string          `json:"productId,omitempty" validate:"required_without=ProductExternalID"`
	ProductExternalID string          `json:"productExternalId,omitempty"`
	StockID           string          `json:"stockId,omitempty" validate:"required_without=StockExternalID"`
	StockExternalID   string          `json:"stockExternalId,omitempty"`
	Quantity          decimal.Decimal `json:"quantity"`
}

// NaturalKey is the (product, stock) reference pair.
func (in StockInput) NaturalKey() string {
	return refKey(in.ProductID, in.ProductExternalID) + "|" + refKey(in.StockID, in.StockExternalID)
}

// PriceTypeInput declares a price type by external id.
type PriceTypeInput struct {
	ExternalID string `json:"externalId" validate:"required,max=255"`
	Name       string `json:"name" validate:"required,max=255"`
	Currency   string `json:"currency,omitempty" validate:"max=16"`
}

// StockLocationInput declares a stock by external id.
type StockLocationInput struct {
	ExternalID string `json:"externalId" validate:"required,max=255"`
	Name       string `json:"name" validate:"required,max=255"`
}

// ItemResult is the outcome for the input at Index. Exactly one of the success
// fields or Err is meaningful.
type ItemResult struct {
	Index       int              `json:"index"`
	ID          string           `json:"id,omitempty"`
	ExternalID  string           `json:"externalId,omitempty"`
	ProductID   string           `json:"productId,omitempty"`
	PriceTypeID string           `json:"priceTypeId,omitempty"`
	StockID     string           `json:"stockId,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	Err         *ItemError       `json:"error,omitempty"`
}

// OK reports whether the item succeeded.
func (r ItemResult) OK() bool { return r.Err == nil }

// Summarize tallies results and reports whether any failure is transient.
func Summarize(results []ItemResult) (succeeded, failed int, transient bool) {
	for _, r := range results {
		if r.OK() {
			succeeded++
			continue
		}
		failed++
		if r.Err.Transient() {
			transient = true
		}
	}
	return succeeded, failed, transient
}

func refKey(id, externalID string) string {
	if id != "" {
		return "id:" + id
	}
	return "ext:" + strings.TrimSpace(externalID)
}
