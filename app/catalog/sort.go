package catalog

import "fmt"

type SortKey string

const (
	SortDefault   SortKey = "default"
	SortPriceAsc  SortKey = "price-asc"
	SortPriceDesc SortKey = "price-desc"
	SortNameAsc   SortKey = "name-asc"
	SortNameDesc  SortKey = "name-desc"
)

// AllCategories disables the category filter.
const AllCategories = "all"

var sortAliases = map[string]SortKey{
	"":                    SortDefault,
	string(SortDefault):   SortDefault,
	string(SortPriceAsc):  SortPriceAsc,
	string(SortPriceDesc): SortPriceDesc,
	string(SortNameAsc):   SortNameAsc,
	string(SortNameDesc):  SortNameDesc,
	"price-low-high":      SortPriceAsc,
	"price-high-low":      SortPriceDesc,
	"price-ascending":     SortPriceAsc,
	"price-descending":    SortPriceDesc,
	"name-a-z":            SortNameAsc,
	"name-z-a":            SortNameDesc,
}

// ParseSortKey resolves a sort key or one of its aliases. An empty string
// means SortDefault.
func ParseSortKey(s string) (SortKey, error) {
	key, ok := sortAliases[s]
	if !ok {
		return "", fmt.Errorf("unknown sort key: %s", s)
	}
	return key, nil
}
