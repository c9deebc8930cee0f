package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/grocery-feed/app/cart"
	"github.com/lysyi3m/grocery-feed/app/catalog"
)

// OrderStore keeps placed orders for the confirmation view.
type OrderStore struct {
	db *DB
}

func NewOrderStore(db *DB) *OrderStore {
	return &OrderStore{db: db}
}

// SaveOrder stores the order and its items in a single transaction. Items keep
// their cart position.
func (s *OrderStore) SaveOrder(ctx context.Context, order *cart.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, total, item_count, placed_at)
		VALUES (?, ?, ?, ?)
	`, order.ID, order.Total, order.ItemCount, order.PlacedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO order_items (order_id, position, product_id, name, category, price, image, is_featured)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare order item insert: %w", err)
	}
	defer stmt.Close()

	for position, item := range order.Items {
		_, err = stmt.ExecContext(ctx, order.ID, position, item.ID, item.Name, item.Category,
			item.Price, item.Image, item.IsFeatured)
		if err != nil {
			return fmt.Errorf("failed to insert order item %d: %w", position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	return nil
}

// GetOrder returns nil when no order has the given id.
func (s *OrderStore) GetOrder(ctx context.Context, id string) (*cart.Order, error) {
	var order cart.Order
	var placedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, total, item_count, placed_at
		FROM orders
		WHERE id = ?
	`, id).Scan(&order.ID, &order.Total, &order.ItemCount, &placedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	order.PlacedAt, err = time.Parse(time.RFC3339Nano, placedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse placed_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name, category, price, image, is_featured
		FROM order_items
		WHERE order_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	order.Items = make([]catalog.Product, 0, order.ItemCount)
	for rows.Next() {
		var item catalog.Product
		if err := rows.Scan(&item.ID, &item.Name, &item.Category, &item.Price, &item.Image, &item.IsFeatured); err != nil {
			return nil, fmt.Errorf("failed to scan order item row: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}

	return &order, nil
}

func (s *OrderStore) GetOrderCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get order count: %w", err)
	}
	return count, nil
}
