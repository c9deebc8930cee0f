package cart

import (
	"time"

	"github.com/lysyi3m/grocery-feed/app/catalog"
)

// Order is the snapshot a checkout produces.
type Order struct {
	ID        string            `json:"id"`
	Items     []catalog.Product `json:"items"`
	ItemCount int               `json:"item_count"`
	Total     float64           `json:"total"`
	PlacedAt  time.Time         `json:"placed_at"`
}

func (o *Order) FormattedTotal() string {
	return FormatAmount(o.Total)
}
