package api

import (
	"context"
	"time"

	"github.com/lysyi3m/grocery-feed/app/cart"
	"github.com/lysyi3m/grocery-feed/app/catalog"
	"github.com/lysyi3m/grocery-feed/app/database"
	"github.com/lysyi3m/grocery-feed/app/feed"
	"github.com/lysyi3m/grocery-feed/app/source"
)

type FeedEngine interface {
	SetFilters(filters feed.Filters) (*feed.Dispatch, error)
	RequestNextPage(generation uint64) (*feed.Dispatch, error)
	OnViewportNearEnd() *feed.Dispatch
	View() (feed.Visible, feed.State)
	State() feed.State
	Product(id string) (catalog.Product, bool)
}

var _ FeedEngine = (*feed.Engine)(nil)

type ProductCreator interface {
	CreateProduct(ctx context.Context, product catalog.NewProduct) (*catalog.Product, error)
}

var _ ProductCreator = (*source.Client)(nil)

type Handler struct {
	engine        FeedEngine
	cart          *cart.Cart
	orders        database.OrderRepository
	products      ProductCreator
	catalogConfig *catalog.Config
	version       string
}

type filtersRequest struct {
	Search   string `json:"search"`
	Category string `json:"category"`
	Sort     string `json:"sort"`
}

type pageRequest struct {
	Generation uint64 `json:"generation" binding:"required"`
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

type feedResponse struct {
	Featured []catalog.Product `json:"featured"`
	Products []catalog.Product `json:"products"`
	State    feed.State        `json:"state"`
}

type cartResponse struct {
	Items          []catalog.Product `json:"items"`
	Count          int               `json:"count"`
	Total          float64           `json:"total"`
	FormattedTotal string            `json:"formatted_total"`
}

type orderResponse struct {
	ID             string            `json:"id"`
	Items          []catalog.Product `json:"items"`
	ItemCount      int               `json:"item_count"`
	Total          float64           `json:"total"`
	FormattedTotal string            `json:"formatted_total"`
	PlacedAt       time.Time         `json:"placed_at"`
}

func newOrderResponse(order *cart.Order) orderResponse {
	return orderResponse{
		ID:             order.ID,
		Items:          order.Items,
		ItemCount:      order.ItemCount,
		Total:          order.Total,
		FormattedTotal: order.FormattedTotal(),
		PlacedAt:       order.PlacedAt.In(time.Local),
	}
}
