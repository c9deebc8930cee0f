package database

import (
	"context"

	"github.com/lysyi3m/grocery-feed/app/cart"
)

type OrderRepository interface {
	SaveOrder(ctx context.Context, order *cart.Order) error
	GetOrder(ctx context.Context, id string) (*cart.Order, error)
	GetOrderCount(ctx context.Context) (int, error)
}

var _ OrderRepository = (*OrderStore)(nil)
