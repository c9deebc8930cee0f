package cart

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/grocery-feed/app/catalog"
)

var ErrEmptyCart = errors.New("cart is empty")

// Cart is an ordered multiset of products. Adding the same product twice keeps
// two entries; there is no remove.
type Cart struct {
	mu    sync.Mutex
	items []catalog.Product
	total float64
	now   func() time.Time
}

func New() *Cart {
	return &Cart{now: time.Now}
}

func (c *Cart) Add(product catalog.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = append(c.items, product)
	c.total += product.Price

	slog.Debug("Product added to cart", "product_id", product.ID, "count", len(c.items))
}

func (c *Cart) Items() []catalog.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Checkout snapshots the cart into an Order and hands it to commit. The cart is
// emptied only when commit succeeds; on error it is left as it was. The cart
// stays locked while commit runs, so adds wait for the outcome.
func (c *Cart) Checkout(commit func(order *Order) error) (*Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) == 0 {
		return nil, ErrEmptyCart
	}

	order := &Order{
		ID:        uuid.NewString(),
		Items:     slices.Clone(c.items),
		ItemCount: len(c.items),
		Total:     c.total,
		PlacedAt:  c.now().UTC(),
	}

	if commit != nil {
		if err := commit(order); err != nil {
			return nil, fmt.Errorf("failed to commit order %s: %w", order.ID, err)
		}
	}

	c.items = nil
	c.total = 0

	slog.Info("Checkout completed", "order_id", order.ID, "items", order.ItemCount, "total", FormatAmount(order.Total))

	return order, nil
}
