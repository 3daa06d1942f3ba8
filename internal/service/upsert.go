package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/timmy/catalogx/internal/domain"
	"github.com/timmy/catalogx/internal/logger"
	"github.com/timmy/catalogx/internal/repository"
	"golang.org/x/sync/errgroup"
)

// DefaultUpsertConcurrency bounds how many natural-key groups are written at once.
const DefaultUpsertConcurrency = 8

// UpsertEngine merges normalized items into the catalog store. Every item is
// an independent write: a failing item never blocks or rolls back another.
type UpsertEngine struct {
	products    *repository.ProductRepository
	prices      *repository.PriceRepository
	stocks      *repository.StockRepository
	validate    *validator.Validate
	concurrency int
}

// NewUpsertEngine creates an engine over the catalog repositories.
func NewUpsertEngine(
	products *repository.ProductRepository,
	prices *repository.PriceRepository,
	stocks *repository.StockRepository,
	concurrency int,
) *UpsertEngine {
	if concurrency <= 0 {
		concurrency = DefaultUpsertConcurrency
	}
	return &UpsertEngine{
		products:    products,
		prices:      prices,
		stocks:      stocks,
		validate:    newValidator(),
		concurrency: concurrency,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func (e *UpsertEngine) check(in interface{}) error {
	err := e.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.NewValidationError("invalid input: %v", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return domain.NewValidationError("%s", strings.Join(msgs, "; "))
}

// run executes do for every index. Indexes sharing a key run sequentially in
// input order; distinct keys run concurrently up to the engine's bound. An
// empty key puts the item in a group of its own.
func (e *UpsertEngine) run(ctx context.Context, n int, key func(i int) string, do func(ctx context.Context, i int) domain.ItemResult) []domain.ItemResult {
	results := make([]domain.ItemResult, n)
	if n == 0 {
		return results
	}

	var groups [][]int
	byKey := make(map[string]int)
	for i := 0; i < n; i++ {
		k := key(i)
		if k == "" {
			groups = append(groups, []int{i})
			continue
		}
		if g, ok := byKey[k]; ok {
			groups[g] = append(groups[g], i)
			continue
		}
		byKey[k] = len(groups)
		groups = append(groups, []int{i})
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			for _, i := range group {
				results[i] = do(ctx, i)
				results[i].Index = i
			}
			return nil
		})
	}
	_ = g.Wait()

	if failed := countFailed(results); failed > 0 {
		logger.With(logger.Fields{logger.FieldCount: n, logger.FieldFailed: failed}).Debug(ctx, "Upsert batch finished with item errors")
	}
	return results
}

func countFailed(results []domain.ItemResult) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}

func failure(index int, err error) domain.ItemResult {
	return domain.ItemResult{Index: index, Err: domain.NewItemError(index, err)}
}

// UpsertProducts creates or updates products. An input with ExternalID is
// merged on (company, external id); its ID is then only used to attach the
// external id to that product when no product carries it yet. An input with
// only ID updates that product, and anything else creates a new product.
func (e *UpsertEngine) UpsertProducts(ctx context.Context, companyID string, items []domain.ProductInput) []domain.ItemResult {
	return e.run(ctx, len(items),
		func(i int) string { return items[i].NaturalKey() },
		func(ctx context.Context, i int) domain.ItemResult {
			p, err := e.upsertProduct(ctx, companyID, items[i])
			if err != nil {
				return failure(i, err)
			}
			res := domain.ItemResult{Index: i, ID: p.ID}
			if p.ExternalID != nil {
				res.ExternalID = *p.ExternalID
			}
			return res
		})
}

func (e *UpsertEngine) upsertProduct(ctx context.Context, companyID string, in domain.ProductInput) (*domain.Product, error) {
	if err := e.check(in); err != nil {
		return nil, err
	}
	ext := strings.TrimSpace(in.ExternalID)

	if ext != "" {
		p, err := e.products.GetByExternalID(ctx, companyID, ext)
		switch {
		case err == nil:
			if in.ID != "" && in.ID != p.ID {
				logger.With(logger.Fields{"product_id": p.ID, "ignored_id": in.ID}).
					Debug(ctx, "External id belongs to another product, merging on external id")
			}
			return e.updateProduct(ctx, p, in, &ext)
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	if in.ID != "" {
		p, err := e.products.GetByID(ctx, companyID, in.ID)
		if err != nil {
			return nil, err
		}
		if ext == "" {
			return e.updateProduct(ctx, p, in, p.ExternalID)
		}
		return e.updateProduct(ctx, p, in, &ext)
	}

	p := &domain.Product{ID: uuid.New().String(), CompanyID: companyID}
	applyProductInput(p, in)
	if ext == "" {
		if err := e.products.Create(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}
	p.ExternalID = &ext
	if err := e.products.UpsertByExternalID(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *UpsertEngine) updateProduct(ctx context.Context, p *domain.Product, in domain.ProductInput, ext *string) (*domain.Product, error) {
	applyProductInput(p, in)
	p.ExternalID = ext
	if err := e.products.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func applyProductInput(p *domain.Product, in domain.ProductInput) {
	p.Name = strings.TrimSpace(in.Name)
	p.Number = in.Number
	p.Brand = in.Brand
	p.BrandNumber = in.BrandNumber
	p.Unit = in.Unit
	p.Description = in.Description
	p.Archive = in.Archive
}

// UpsertPrices sets the price of each (product, price type) pair.
func (e *UpsertEngine) UpsertPrices(ctx context.Context, companyID string, items []domain.PriceInput) []domain.ItemResult {
	return e.run(ctx, len(items),
		func(i int) string { return items[i].NaturalKey() },
		func(ctx context.Context, i int) domain.ItemResult {
			in := items[i]
			if err := e.check(in); err != nil {
				return failure(i, err)
			}
			product, err := e.products.Resolve(ctx, companyID, in.ProductID, in.ProductExternalID)
			if err != nil {
				return failure(i, err)
			}
			pt, err := e.prices.ResolveType(ctx, companyID, in.PriceTypeID, in.PriceTypeExternalID)
			if err != nil {
				return failure(i, err)
			}
			currency := in.Currency
			if currency == "" {
				currency = pt.Currency
			}
			rec := &domain.PriceRecord{
				ID:          uuid.New().String(),
				ProductID:   product.ID,
				PriceTypeID: pt.ID,
				Price:       in.Price,
				Currency:    currency,
			}
			if err := e.prices.UpsertRecord(ctx, rec); err != nil {
				return failure(i, err)
			}
			price := in.Price
			return domain.ItemResult{Index: i, ProductID: product.ID, PriceTypeID: pt.ID, Price: &price}
		})
}

// UpsertStockBalances sets the quantity of each (product, stock) pair.
func (e *UpsertEngine) UpsertStockBalances(ctx context.Context, companyID string, items []domain.StockInput) []domain.ItemResult {
	return e.run(ctx, len(items),
		func(i int) string { return items[i].NaturalKey() },
		func(ctx context.Context, i int) domain.ItemResult {
			in := items[i]
			if err := e.check(in); err != nil {
				return failure(i, err)
			}
			product, err := e.products.Resolve(ctx, companyID, in.ProductID, in.ProductExternalID)
			if err != nil {
				return failure(i, err)
			}
			st, err := e.stocks.ResolveStock(ctx, companyID, in.StockID, in.StockExternalID)
			if err != nil {
				return failure(i, err)
			}
			bal := &domain.StockBalance{
				ID:        uuid.New().String(),
				ProductID: product.ID,
				StockID:   st.ID,
				Quantity:  in.Quantity,
			}
			if err := e.stocks.UpsertBalance(ctx, bal); err != nil {
				return failure(i, err)
			}
			qty := in.Quantity
			return domain.ItemResult{Index: i, ProductID: product.ID, StockID: st.ID, Quantity: &qty}
		})
}

// UpsertPriceTypes merges price type declarations by external id.
func (e *UpsertEngine) UpsertPriceTypes(ctx context.Context, companyID string, items []domain.PriceTypeInput) []domain.ItemResult {
	return e.run(ctx, len(items),
		func(i int) string { return strings.TrimSpace(items[i].ExternalID) },
		func(ctx context.Context, i int) domain.ItemResult {
			in := items[i]
			if err := e.check(in); err != nil {
				return failure(i, err)
			}
			pt := &domain.PriceType{
				ID:         uuid.New().String(),
				CompanyID:  companyID,
				ExternalID: strings.TrimSpace(in.ExternalID),
				Name:       in.Name,
				Currency:   in.Currency,
			}
			if err := e.prices.UpsertType(ctx, pt); err != nil {
				return failure(i, err)
			}
			return domain.ItemResult{Index: i, ID: pt.ID, ExternalID: pt.ExternalID}
		})
}

// UpsertStocks merges stock declarations by external id.
func (e *UpsertEngine) UpsertStocks(ctx context.Context, companyID string, items []domain.StockLocationInput) []domain.ItemResult {
	return e.run(ctx, len(items),
		func(i int) string { return strings.TrimSpace(items[i].ExternalID) },
		func(ctx context.Context, i int) domain.ItemResult {
			in := items[i]
			if err := e.check(in); err != nil {
				return failure(i, err)
			}
			st := &domain.Stock{
				ID:         uuid.New().String(),
				CompanyID:  companyID,
				ExternalID: strings.TrimSpace(in.ExternalID),
				Name:       in.Name,
			}
			if err := e.stocks.UpsertStock(ctx, st); err != nil {
				return failure(i, err)
			}
			return domain.ItemResult{Index: i, ID: st.ID, ExternalID: st.ExternalID}
		})
}
