package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrProductSizeNotFound = errors.New("product or size not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrOrderStatusChanged  = errors.New("order status changed concurrently")
)

// OrderStore gives access to orders. Every mutation runs through WithinTx
// so that header, items and stock move together or not at all.
type OrderStore interface {
	WithinTx(ctx context.Context, fn func(tx OrderTx) error) error
	ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error)
	ListByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error)
	ListAll(ctx context.Context) ([]*domain.Order, error)
}

// OrderTx is the set of statements available inside an order transaction
type OrderTx interface {
	// LockSizedProduct reads a product and one of its sizes, locking the
	// size row until the transaction ends.
	LockSizedProduct(ctx context.Context, productID int64, sizeValue string) (*domain.SizedProduct, error)
	InsertOrder(ctx context.Context, order *domain.Order) error
	InsertOrderItem(ctx context.Context, item *domain.OrderItem) error
	// DecrementStock removes quantity from a size only if enough stock is
	// left, returning ErrInsufficientStock otherwise.
	DecrementStock(ctx context.Context, sizeID int64, quantity int) error
	IncrementStock(ctx context.Context, sizeID int64, quantity int) error
	// LockOrder reads an order header and locks it until the transaction ends
	LockOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	OrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	// UpdateOrderStatus moves an order from one status to another, returning
	// ErrOrderStatusChanged if it is no longer in the expected status.
	UpdateOrderStatus(ctx context.Context, orderID int64, from, to domain.OrderStatus) error
}

type orderStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderStore creates a new instance of OrderStore
func NewOrderStore(db *sql.DB, logger *zap.Logger) OrderStore {
	return &orderStore{db: db, logger: logger}
}

// WithinTx acquires a dedicated connection, runs fn inside a transaction and
// commits when fn succeeds. The connection is released on every path.
func (s *orderStore) WithinTx(ctx context.Context, fn func(tx OrderTx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			s.rollback(tx)
			panic(p)
		}
	}()

	if err := fn(&orderTx{tx: tx}); err != nil {
		s.rollback(tx)
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// rollback never replaces the error that caused it
func (s *orderStore) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.Error("Rollback failed", zap.Error(err))
	}
}

func (s *orderStore) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	return s.list(ctx, "WHERE o.user_id = $1", userID)
}

func (s *orderStore) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	return s.list(ctx, "WHERE o.status = $1", status)
}

func (s *orderStore) ListAll(ctx context.Context) ([]*domain.Order, error) {
	return s.list(ctx, "")
}

// list loads order headers with their items in a single join and groups the
// rows by order, keeping newest orders first.
func (s *orderStore) list(ctx context.Context, where string, args ...interface{}) ([]*domain.Order, error) {
	query := fmt.Sprintf(`
		SELECT
			o.order_id, o.user_id, o.customer_name, o.customer_phone, o.customer_address,
			COALESCE(o.description, ''), o.status, o.total, o.order_date,
			oi.order_item_id, oi.product_id, oi.size_id, oi.product_name,
			oi.price, oi.quantity, oi.line_total, ps.size_value
		FROM orders o
		LEFT JOIN order_items oi ON o.order_id = oi.order_id
		LEFT JOIN product_sizes ps ON oi.size_id = ps.size_id
		%s
		ORDER BY o.order_date DESC, o.order_id DESC, oi.order_item_id
	`, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	byID := make(map[int64]*domain.Order)

	for rows.Next() {
		var (
			o         domain.Order
			itemID    sql.NullInt64
			productID sql.NullInt64
			sizeID    sql.NullInt64
			name      sql.NullString
			price     decimal.NullDecimal
			quantity  sql.NullInt64
			lineTotal decimal.NullDecimal
			sizeValue sql.NullString
		)

		err := rows.Scan(
			&o.ID, &o.UserID, &o.CustomerName, &o.CustomerPhone, &o.CustomerAddress,
			&o.Description, &o.Status, &o.Total, &o.OrderDate,
			&itemID, &productID, &sizeID, &name,
			&price, &quantity, &lineTotal, &sizeValue,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		order, ok := byID[o.ID]
		if !ok {
			o.Items = []domain.OrderItem{}
			order = &o
			byID[o.ID] = order
			orders = append(orders, order)
		}

		if itemID.Valid {
			order.Items = append(order.Items, domain.OrderItem{
				ID:          itemID.Int64,
				OrderID:     order.ID,
				ProductID:   productID.Int64,
				SizeID:      sizeID.Int64,
				SizeValue:   sizeValue.String,
				ProductName: name.String,
				Price:       price.Decimal,
				Quantity:    int(quantity.Int64),
				LineTotal:   lineTotal.Decimal,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

type orderTx struct {
	tx *sql.Tx
}

func (t *orderTx) LockSizedProduct(ctx context.Context, productID int64, sizeValue string) (*domain.SizedProduct, error) {
	query := `
		SELECT p.product_id, p.name, p.price, ps.size_id, ps.size_value, ps.stock
		FROM products p
		INNER JOIN product_sizes ps ON p.product_id = ps.product_id
		WHERE p.product_id = $1 AND ps.size_value = $2
		FOR UPDATE OF ps
	`

	sp := &domain.SizedProduct{}
	err := t.tx.QueryRowContext(ctx, query, productID, sizeValue).Scan(
		&sp.ProductID,
		&sp.ProductName,
		&sp.UnitPrice,
		&sp.SizeID,
		&sp.SizeValue,
		&sp.Stock,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductSizeNotFound
		}
		return nil, fmt.Errorf("failed to lock product size: %w", err)
	}

	return sp, nil
}

func (t *orderTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (user_id, customer_name, customer_phone, customer_address, status, total, description)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING order_id, order_date
	`

	err := t.tx.QueryRowContext(
		ctx,
		query,
		order.UserID,
		order.CustomerName,
		order.CustomerPhone,
		order.CustomerAddress,
		order.Status,
		order.Total,
		order.Description,
	).Scan(&order.ID, &order.OrderDate)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

func (t *orderTx) InsertOrderItem(ctx context.Context, item *domain.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, size_id, product_name, price, quantity, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING order_item_id
	`

	err := t.tx.QueryRowContext(
		ctx,
		query,
		item.OrderID,
		item.ProductID,
		item.SizeID,
		item.ProductName,
		item.Price,
		item.Quantity,
		item.LineTotal,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}

	return nil
}

func (t *orderTx) DecrementStock(ctx context.Context, sizeID int64, quantity int) error {
	result, err := t.tx.ExecContext(
		ctx,
		`UPDATE product_sizes SET stock = stock - $1 WHERE size_id = $2 AND stock >= $1`,
		quantity,
		sizeID,
	)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	return expectOneRow(result, ErrInsufficientStock)
}

func (t *orderTx) IncrementStock(ctx context.Context, sizeID int64, quantity int) error {
	result, err := t.tx.ExecContext(
		ctx,
		`UPDATE product_sizes SET stock = stock + $1 WHERE size_id = $2`,
		quantity,
		sizeID,
	)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}

	return expectOneRow(result, ErrProductSizeNotFound)
}

func (t *orderTx) LockOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	query := `
		SELECT order_id, user_id, customer_name, customer_phone, customer_address,
		       COALESCE(description, ''), status, total, order_date
		FROM orders
		WHERE order_id = $1
		FOR UPDATE
	`

	order := &domain.Order{}
	err := t.tx.QueryRowContext(ctx, query, orderID).Scan(
		&order.ID,
		&order.UserID,
		&order.CustomerName,
		&order.CustomerPhone,
		&order.CustomerAddress,
		&order.Description,
		&order.Status,
		&order.Total,
		&order.OrderDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	return order, nil
}

func (t *orderTx) OrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT oi.order_item_id, oi.order_id, oi.product_id, oi.size_id, ps.size_value,
		       oi.product_name, oi.price, oi.quantity, oi.line_total
		FROM order_items oi
		INNER JOIN product_sizes ps ON oi.size_id = ps.size_id
		WHERE oi.order_id = $1
		ORDER BY oi.order_item_id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to read order items: %w", err)
	}
	defer rows.Close()

	items := []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.SizeID,
			&item.SizeValue,
			&item.ProductName,
			&item.Price,
			&item.Quantity,
			&item.LineTotal,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

func (t *orderTx) UpdateOrderStatus(ctx context.Context, orderID int64, from, to domain.OrderStatus) error {
	result, err := t.tx.ExecContext(
		ctx,
		`UPDATE orders SET status = $1 WHERE order_id = $2 AND status = $3`,
		to,
		orderID,
		from,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	return expectOneRow(result, ErrOrderStatusChanged)
}

func expectOneRow(result sql.Result, none error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return none
	}
	return nil
}
