package commerceml

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/timmy/catalogx/internal/domain"
)

func mapProduct(p xmlProduct) (*domain.ProductInput, error) {
	id := externalID(p.ID)
	if id == "" {
		return nil, domain.NewValidationError("product has no Ид")
	}
	name := clean(p.Name)
	if name == "" {
		return nil, domain.NewValidationError("product %s has no Наименование", id)
	}

	unit := clean(p.BaseUnit.Text)
	if unit == "" {
		unit = clean(p.BaseUnit.FullName)
	}

	in := &domain.ProductInput{
		ExternalID:  id,
		Name:        name,
		Number:      clean(p.Article),
		Brand:       clean(p.Maker.Name),
		Unit:        unit,
		Description: strings.TrimSpace(p.Description),
		Archive:     isTrue(p.Deleted) || strings.EqualFold(clean(p.Status), statusDeleted) || strings.EqualFold(clean(p.StatusAttr), statusDeleted),
	}
	for _, req := range p.Requisites {
		if strings.EqualFold(clean(req.Name), requisiteBrandNumber) {
			in.BrandNumber = clean(req.Value)
			break
		}
	}
	return in, nil
}

func mapPrice(productID string, p xmlPrice, currencies map[string]string) (*domain.PriceInput, error) {
	typeID := clean(p.PriceTypeID)
	if typeID == "" {
		return nil, domain.NewValidationError("price of offer %s has no ИдТипаЦены", productID)
	}
	value, err := ParseDecimal(p.PerUnit)
	if err != nil {
		return nil, domain.NewValidationError("price of offer %s: invalid ЦенаЗаЕдиницу %q", productID, p.PerUnit)
	}
	if value.IsNegative() {
		return nil, domain.NewValidationError("price of offer %s is negative", productID)
	}
	currency := clean(p.Currency)
	if currency == "" {
		currency = currencies[typeID]
	}
	return &domain.PriceInput{
		ProductExternalID:   productID,
		PriceTypeExternalID: typeID,
		Price:               value,
		Currency:            currency,
	}, nil
}

func mapStock(productID, stockID, quantity string) (*domain.StockInput, error) {
	stockID = clean(stockID)
	if stockID == "" {
		return nil, domain.NewValidationError("stock entry of offer %s has no stock id", productID)
	}
	qty, err := ParseDecimal(quantity)
	if err != nil {
		return nil, domain.NewValidationError("stock entry of offer %s: invalid quantity %q", productID, quantity)
	}
	return &domain.StockInput{
		ProductExternalID: productID,
		StockExternalID:   stockID,
		Quantity:          qty,
	}, nil
}

// ParseDecimal accepts both "1234.50" and "1 234,50".
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t', '\n', '\r':
			return -1
		case ',':
			return '.'
		}
		return r
	}, s)
	return decimal.NewFromString(s)
}

// externalID strips the characteristic suffix ("<product>#<variant>").
func externalID(raw string) string {
	id := clean(raw)
	if i := strings.IndexByte(id, '#'); i >= 0 {
		id = id[:i]
	}
	return strings.TrimSpace(id)
}

func clean(s string) string {
	return strings.TrimSpace(s)
}

func isTrue(s string) bool {
	switch strings.ToLower(clean(s)) {
	case "true", "1", "да", "истина":
		return true
	}
	return false
}
