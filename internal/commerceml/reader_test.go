package commerceml

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/timmy/catalogx/internal/domain"
)

func openFixture(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Open("testdata/" + name)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

// TestParseCatalog checks field mapping and item-level error isolation.
func TestParseCatalog(t *testing.T) {
	doc, err := ParseAll(domain.ExchangeTypeCatalog, openFixture(t, "catalog.xml"))
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(doc.Items) != 4 {
		t.Fatalf("items: got %d, want 4", len(doc.Items))
	}
	for i, it := range doc.Items {
		if it.Index != i {
			t.Errorf("item %d has index %d", i, it.Index)
		}
	}

	p := doc.Items[0].Product
	if p == nil {
		t.Fatalf("item 0: want product, got err %v", doc.Items[0].Err)
	}
	want := domain.ProductInput{
		ExternalID:  "bd72d8f9-55bc-11d9-848a-00112f43529a",
		Name:        "Фильтр масляный",
		Number:      "A-100",
		Brand:       "MANN",
		BrandNumber: "W 712/75",
		Unit:        "шт",
		Description: "Оригинальный фильтр",
	}
	if *p != want {
		t.Errorf("item 0:\n got %+v\nwant %+v", *p, want)
	}

	bad := doc.Items[1]
	if bad.Err == nil || bad.Product != nil {
		t.Fatalf("item 1: want item error, got %+v", bad)
	}
	if bad.Err.Code != domain.CodeValidation || bad.Err.Index != 1 {
		t.Errorf("item 1: got code=%s index=%d", bad.Err.Code, bad.Err.Index)
	}

	variant := doc.Items[2].Product
	if variant == nil {
		t.Fatalf("item 2: want product")
	}
	if variant.ExternalID != "c0ffee00-0000-0000-0000-000000000003" {
		t.Errorf("item 2: external id %q", variant.ExternalID)
	}
	if variant.Unit != "Штука" {
		t.Errorf("item 2: unit fallback %q", variant.Unit)
	}
	if !variant.Archive {
		t.Errorf("item 2: Статус=Удален should archive")
	}
	if !doc.Items[3].Product.Archive {
		t.Errorf("item 3: ПометкаУдаления=true should archive")
	}
}

// TestParsePricesWindows1251 reads a cp1251 offers package.
func TestParsePricesWindows1251(t *testing.T) {
	r, err := NewReader(domain.ExchangeTypePrice, openFixture(t, "offers.xml"))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	types := r.PriceTypes()
	if len(types) != 2 || types[0].Name != "Розничная" || types[1].Currency != "USD" {
		t.Fatalf("price types: %+v", types)
	}
	if len(r.Stocks()) != 1 || r.Stocks()[0].Name != "Основной склад" {
		t.Fatalf("stocks: %+v", r.Stocks())
	}

	var items []Item
	for {
		it, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		items = append(items, it)
	}
	if len(items) != 3 {
		t.Fatalf("items: got %d, want 3", len(items))
	}

	testCases := []struct {
		name      string
		item      Item
		priceType string
		price     string
		currency  string
	}{
		{"comma and grouping", items[0], "pt-retail", "1250.50", "RUB"},
		{"currency from declaration", items[1], "pt-opt", "10.75", "USD"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.item.Price
			if p == nil {
				t.Fatalf("want price, got err %v", tc.item.Err)
			}
			if p.ProductExternalID != "bd72d8f9-55bc-11d9-848a-00112f43529a" {
				t.Errorf("product ref %q", p.ProductExternalID)
			}
			if p.PriceTypeExternalID != tc.priceType {
				t.Errorf("price type: got %q, want %q", p.PriceTypeExternalID, tc.priceType)
			}
			if !p.Price.Equal(decimal.RequireFromString(tc.price)) {
				t.Errorf("price: got %s, want %s", p.Price, tc.price)
			}
			if p.Currency != tc.currency {
				t.Errorf("currency: got %q, want %q", p.Currency, tc.currency)
			}
		})
	}

	if items[2].Err == nil || items[2].Err.Index != 2 {
		t.Errorf("negative price should be an item error at index 2, got %+v", items[2])
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("after end: got %v, want io.EOF", err)
	}
}

func TestParseStockBalances(t *testing.T) {
	doc, err := ParseAll(domain.ExchangeTypeStockBalance, openFixture(t, "offers.xml"))
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(doc.Items) != 2 {
		t.Fatalf("items: got %d, want 2", len(doc.Items))
	}
	first, second := doc.Items[0].Stock, doc.Items[1].Stock
	if first == nil || second == nil {
		t.Fatalf("want two stock items, got %+v", doc.Items)
	}
	if first.StockExternalID != "st-main" || !first.Quantity.Equal(decimal.NewFromInt(12)) {
		t.Errorf("attribute form: %+v", first)
	}
	if second.ProductExternalID != "c0ffee00-0000-0000-0000-000000000003" || !second.Quantity.Equal(decimal.RequireFromString("3.5")) {
		t.Errorf("Остатки form: %+v", second)
	}
}

func TestStructuralErrors(t *testing.T) {
	testCases := []struct {
		name string
		typ  domain.ExchangeType
		doc  string
	}{
		{"empty", domain.ExchangeTypeCatalog, ""},
		{"wrong root", domain.ExchangeTypeCatalog, `<?xml version="1.0"?><Root><Каталог/></Root>`},
		{"catalog without products", domain.ExchangeTypeCatalog,
			`<КоммерческаяИнформация><Каталог><Ид>1</Ид></Каталог></КоммерческаяИнформация>`},
		{"price without offer package", domain.ExchangeTypePrice,
			`<КоммерческаяИнформация><Каталог><Товары/></Каталог></КоммерческаяИнформация>`},
		{"unknown charset", domain.ExchangeTypeCatalog,
			`<?xml version="1.0" encoding="x-no-such-charset"?><КоммерческаяИнформация/>`},
		{"not xml", domain.ExchangeTypePrice, `name,price` + "\n" + `a,1`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewReader(tc.typ, strings.NewReader(tc.doc))
			var pe *domain.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("want *domain.ParseError, got %v", err)
			}
		})
	}
}

func TestTruncatedDocumentFailsMidStream(t *testing.T) {
	doc := `<КоммерческаяИнформация><Каталог><Товары>
<Товар><Ид>p1</Ид><Наименование>One</Наименование></Товар>
<Товар><Ид>p2</Ид><Наименов`

	r, err := NewReader(domain.ExchangeTypeCatalog, strings.NewReader(doc))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	it, err := r.Next()
	if err != nil || it.Product == nil || it.Product.ExternalID != "p1" {
		t.Fatalf("first item: %+v, %v", it, err)
	}

	_, err = r.Next()
	var pe *domain.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want *domain.ParseError, got %v", err)
	}
	if _, again := r.Next(); again != err {
		t.Errorf("error should be sticky, got %v", again)
	}
}

func TestOfferPackageWithoutOffers(t *testing.T) {
	doc := `<КоммерческаяИнформация><ПакетПредложений>
<ТипыЦен><ТипЦены><Ид>pt</Ид><Наименование>Base</Наименование></ТипЦены></ТипыЦен>
</ПакетПредложений></КоммерческаяИнформация>`

	r, err := NewReader(domain.ExchangeTypePrice, strings.NewReader(doc))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if len(r.PriceTypes()) != 1 {
		t.Errorf("price types: %+v", r.PriceTypes())
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("want io.EOF, got %v", err)
	}
}

func TestParseDecimal(t *testing.T) {
	testCases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"10", "10", true},
		{"1 250,50", "1250.5", true},
		{"1 000.25", "1000.25", true},
		{"", "", false},
		{"abc", "", false},
	}
	for _, tc := range testCases {
		got, err := ParseDecimal(tc.in)
		if (err == nil) != tc.ok {
			t.Errorf("ParseDecimal(%q): err=%v, want ok=%v", tc.in, err, tc.ok)
			continue
		}
		if tc.ok && !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("ParseDecimal(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
