package feed

import (
	"cmp"
	"slices"

	"github.com/lysyi3m/grocery-feed/app/catalog"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type Sorter struct {
	lang language.Tag
}

func NewSorter(lang language.Tag) *Sorter {
	return &Sorter{lang: lang}
}

// Run splits products into the featured strip and the main grid. Featured
// products keep arrival order; the main grid is stably sorted by key, so ties
// keep arrival order too.
func (s *Sorter) Run(products []catalog.Product, key catalog.SortKey) Visible {
	visible := Visible{
		Featured: make([]catalog.Product, 0),
		Products: make([]catalog.Product, 0, len(products)),
	}

	for _, product := range products {
		if product.IsFeatured {
			visible.Featured = append(visible.Featured, product)
		} else {
			visible.Products = append(visible.Products, product)
		}
	}

	switch key {
	case catalog.SortPriceAsc:
		slices.SortStableFunc(visible.Products, func(a, b catalog.Product) int {
			return cmp.Compare(a.Price, b.Price)
		})
	case catalog.SortPriceDesc:
		slices.SortStableFunc(visible.Products, func(a, b catalog.Product) int {
			return cmp.Compare(b.Price, a.Price)
		})
	case catalog.SortNameAsc, catalog.SortNameDesc:
		// collate.Collator is not safe for concurrent use
		collator := collate.New(s.lang, collate.IgnoreCase)
		slices.SortStableFunc(visible.Products, func(a, b catalog.Product) int {
			if key == catalog.SortNameDesc {
				return collator.CompareString(b.Name, a.Name)
			}
			return collator.CompareString(a.Name, b.Name)
		})
	}

	return visible
}
