// Package commerceml streams normalized catalog records out of CommerceML 2.0x
// ("КоммерческаяИнформация") exchange documents.
package commerceml

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/timmy/catalogx/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Item is one record produced by the reader. Exactly one of Product, Price,
// Stock or Err is set. Index is the item's position in the document.
type Item struct {
	Index   int
	Product *domain.ProductInput
	Price   *domain.PriceInput
	Stock   *domain.StockInput
	Err     *domain.ItemError
}

// Reader is a forward-only cursor over the items of one document.
// It is not safe for concurrent use.
type Reader struct {
	typ     domain.ExchangeType
	dec     *xml.Decoder
	itemTag string

	priceTypes []domain.PriceTypeInput
	stocks     []domain.StockLocationInput
	currencies map[string]string

	pending []Item
	index   int
	done    bool
	err     error
}

// NewReader validates the document envelope and positions the cursor at the
// first item of the section typ requires. Declarations that precede the offers
// are read eagerly. A structurally invalid document yields *domain.ParseError.
func NewReader(typ domain.ExchangeType, src io.Reader) (*Reader, error) {
	if !typ.IsValid() {
		return nil, domain.NewValidationError("unsupported exchange type %q", typ)
	}

	br := bufio.NewReader(src)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	dec := xml.NewDecoder(br)
	dec.CharsetReader = charsetReader

	r := &Reader{
		typ:        typ,
		dec:        dec,
		currencies: make(map[string]string),
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

// PriceTypes returns the price types declared in the document.
func (r *Reader) PriceTypes() []domain.PriceTypeInput { return r.priceTypes }

// Stocks returns the stocks declared in the document.
func (r *Reader) Stocks() []domain.StockLocationInput { return r.stocks }

// Next returns the next item, io.EOF after the last one, or a *domain.ParseError
// if the document turns out to be malformed. Once an error is returned every
// later call returns the same error.
func (r *Reader) Next() (Item, error) {
	for {
		if len(r.pending) > 0 {
			it := r.pending[0]
			r.pending = r.pending[1:]
			return it, nil
		}
		if r.err != nil {
			return Item{}, r.err
		}
		if r.done {
			return Item{}, io.EOF
		}

		tok, err := r.dec.Token()
		if err != nil {
			r.err = r.parseError("read items", err)
			continue
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != r.itemTag {
				if err := r.dec.Skip(); err != nil {
					r.err = r.parseError("skip element "+t.Name.Local, err)
				}
				continue
			}
			r.decodeItem(t)
		case xml.EndElement:
			r.done = true
		}
	}
}

func (r *Reader) open() error {
	root, err := r.firstElement()
	if err != nil {
		return err
	}
	if root.Name.Local != tagRoot {
		return &domain.ParseError{Message: fmt.Sprintf("unexpected root element %q, want %q", root.Name.Local, tagRoot)}
	}

	if r.typ == domain.ExchangeTypeCatalog {
		r.itemTag = tagProduct
		if _, err := r.descend(tagCatalog); err != nil {
			return err
		}
		if _, err := r.descend(tagProducts); err != nil {
			return err
		}
		return nil
	}

	r.itemTag = tagOffer
	if _, err := r.descend(tagOfferPackage); err != nil {
		return err
	}
	return r.readDeclarations()
}

func (r *Reader) firstElement() (xml.StartElement, error) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return xml.StartElement{}, &domain.ParseError{Message: "empty document"}
			}
			return xml.StartElement{}, r.parseError("read document", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

// descend finds the child element named want inside the current element,
// skipping siblings. Reaching the parent's end is a structural error.
func (r *Reader) descend(want string) (xml.StartElement, error) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return xml.StartElement{}, r.parseError("find "+want, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == want {
				return t, nil
			}
			if err := r.dec.Skip(); err != nil {
				return xml.StartElement{}, r.parseError("skip element "+t.Name.Local, err)
			}
		case xml.EndElement:
			return xml.StartElement{}, &domain.ParseError{
				Message: fmt.Sprintf("element %q not found inside %q", want, t.Name.Local),
				Offset:  r.dec.InputOffset(),
			}
		}
	}
}

// readDeclarations consumes offer package children up to the offers list.
// A package without offers is valid and yields no items.
func (r *Reader) readDeclarations() error {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return r.parseError("read "+tagOfferPackage, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case tagPriceTypes:
				var decl xmlPriceTypes
				if err := r.dec.DecodeElement(&decl, &t); err != nil {
					return r.parseError("decode "+tagPriceTypes, err)
				}
				r.addPriceTypes(decl)
			case tagStocks:
				var decl xmlStocks
				if err := r.dec.DecodeElement(&decl, &t); err != nil {
					return r.parseError("decode "+tagStocks, err)
				}
				r.addStocks(decl)
			case tagOffers:
				return nil
			default:
				if err := r.dec.Skip(); err != nil {
					return r.parseError("skip element "+t.Name.Local, err)
				}
			}
		case xml.EndElement:
			r.done = true
			return nil
		}
	}
}

func (r *Reader) addPriceTypes(decl xmlPriceTypes) {
	for _, pt := range decl.Items {
		id := clean(pt.ID)
		if id == "" {
			continue
		}
		name := clean(pt.Name)
		if name == "" {
			name = id
		}
		currency := clean(pt.Currency)
		r.currencies[id] = currency
		r.priceTypes = append(r.priceTypes, domain.PriceTypeInput{ExternalID: id, Name: name, Currency: currency})
	}
}

func (r *Reader) addStocks(decl xmlStocks) {
	for _, st := range decl.Items {
		id := clean(st.ID)
		if id == "" {
			continue
		}
		name := clean(st.Name)
		if name == "" {
			name = id
		}
		r.stocks = append(r.stocks, domain.StockLocationInput{ExternalID: id, Name: name})
	}
}

func (r *Reader) decodeItem(start xml.StartElement) {
	switch r.typ {
	case domain.ExchangeTypeCatalog:
		var p xmlProduct
		if err := r.dec.DecodeElement(&p, &start); err != nil {
			r.err = r.parseError("decode "+tagProduct, err)
			return
		}
		r.emitProduct(p)
	default:
		var o xmlOffer
		if err := r.dec.DecodeElement(&o, &start); err != nil {
			r.err = r.parseError("decode "+tagOffer, err)
			return
		}
		if r.typ == domain.ExchangeTypePrice {
			r.emitPrices(o)
		} else {
			r.emitStocks(o)
		}
	}
}

func (r *Reader) emitProduct(p xmlProduct) {
	in, err := mapProduct(p)
	if err != nil {
		r.push(Item{Err: domain.NewItemError(0, err)})
		return
	}
	r.push(Item{Product: in})
}

func (r *Reader) emitPrices(o xmlOffer) {
	productID := externalID(o.ID)
	if productID == "" {
		r.push(Item{Err: domain.NewItemError(0, domain.NewValidationError("offer has no Ид"))})
		return
	}
	for _, p := range o.Prices {
		in, err := mapPrice(productID, p, r.currencies)
		if err != nil {
			r.push(Item{Err: domain.NewItemError(0, err)})
			continue
		}
		r.push(Item{Price: in})
	}
}

func (r *Reader) emitStocks(o xmlOffer) {
	productID := externalID(o.ID)
	if productID == "" {
		r.push(Item{Err: domain.NewItemError(0, domain.NewValidationError("offer has no Ид"))})
		return
	}
	for _, s := range o.Stocks {
		r.pushStock(mapStock(productID, s.StockID, s.Quantity))
	}
	for _, s := range o.Rests {
		r.pushStock(mapStock(productID, s.ID, s.Quantity))
	}
}

func (r *Reader) pushStock(in *domain.StockInput, err error) {
	if err != nil {
		r.push(Item{Err: domain.NewItemError(0, err)})
		return
	}
	r.push(Item{Stock: in})
}

// push assigns the next document index.
func (r *Reader) push(it Item) {
	it.Index = r.index
	if it.Err != nil {
		it.Err.Index = r.index
	}
	r.index++
	r.pending = append(r.pending, it)
}

func (r *Reader) parseError(op string, err error) *domain.ParseError {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &domain.ParseError{Message: op, Offset: r.dec.InputOffset(), Err: err}
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(strings.TrimSpace(label))
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// Document is a fully materialized exchange document.
type Document struct {
	PriceTypes []domain.PriceTypeInput
	Stocks     []domain.StockLocationInput
	Items      []Item
}

// ParseAll reads every item of src. Item-level errors are kept in Items; a
// structural error aborts with *domain.ParseError.
func ParseAll(typ domain.ExchangeType, src io.Reader) (*Document, error) {
	r, err := NewReader(typ, src)
	if err != nil {
		return nil, err
	}
	doc := &Document{}
	for {
		it, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		doc.Items = append(doc.Items, it)
	}
	doc.PriceTypes = r.PriceTypes()
	doc.Stocks = r.Stocks()
	return doc, nil
}
