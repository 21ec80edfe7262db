package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"pinbot/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			market_id INTEGER NOT NULL,
			market_title TEXT NOT NULL DEFAULT '',
			market_slug TEXT NOT NULL DEFAULT '',
			token_id TEXT NOT NULL,
			token_name TEXT NOT NULL,
			side TEXT NOT NULL,
			offset_ticks INTEGER NOT NULL,
			offset_cents REAL NOT NULL DEFAULT 0,
			reposition_threshold_cents REAL NOT NULL DEFAULT 0.5,
			current_price REAL NOT NULL,
			target_price REAL NOT NULL,
			amount REAL NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user_status ON orders(user_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	// Migrations for databases created before these columns existed.
	// We ignore the error if the column is already there.
	_, _ = s.db.Exec(`ALTER TABLE orders ADD COLUMN reposition_threshold_cents REAL NOT NULL DEFAULT 0.5`)
	_, _ = s.db.Exec(`ALTER TABLE orders ADD COLUMN market_slug TEXT NOT NULL DEFAULT ''`)
	_, _ = s.db.Exec(`ALTER TABLE orders ADD COLUMN offset_cents REAL NOT NULL DEFAULT 0`)

	return nil
}

// OrderStore Implementation

func (s *SQLiteStore) InsertOrder(ctx context.Context, o *domain.Order) error {
	if o.RepositionThresholdCents == 0 {
		o.RepositionThresholdCents = domain.DefaultRepositionThresholdCents
	}
	query := `INSERT INTO orders (order_id, user_id, market_id, market_title, market_slug, token_id, token_name, side, offset_ticks, offset_cents, reposition_threshold_cents, current_price, target_price, amount, status, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		o.OrderID, o.UserID, o.MarketID, o.MarketTitle, o.MarketSlug, o.TokenID, o.TokenName,
		string(o.Side), o.OffsetTicks, o.OffsetCents, o.RepositionThresholdCents,
		o.CurrentPrice, o.TargetPrice, o.Amount, string(o.Status), o.CreatedAt)
	return err
}

const orderColumns = `order_id, user_id, market_id, market_title, market_slug, token_id, token_name, side, offset_ticks, offset_cents, reposition_threshold_cents, current_price, target_price, amount, status, created_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.OrderID, &o.UserID, &o.MarketID, &o.MarketTitle, &o.MarketSlug,
		&o.TokenID, &o.TokenName, &o.Side, &o.OffsetTicks, &o.OffsetCents,
		&o.RepositionThresholdCents, &o.CurrentPrice, &o.TargetPrice, &o.Amount,
		&o.Status, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *SQLiteStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = ?`
	o, err := scanOrder(s.db.QueryRowContext(ctx, query, orderID))
	if err == sql.ErrNoRows {
		return nil, domain.ErrOrderNotFound
	}
	return o, err
}

func (s *SQLiteStore) GetPendingOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = ? AND status = ? ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, userID, string(domain.StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *SQLiteStore) ListUsersWithPending(ctx context.Context) ([]int64, error) {
	query := `SELECT DISTINCT user_id FROM orders WHERE status = ? ORDER BY user_id`
	rows, err := s.db.QueryContext(ctx, query, string(domain.StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) SetStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET status = ? WHERE order_id = ?`, string(status), orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// ReplaceOrder rewrites the record under its new exchange id after a
// confirmed reposition. Prices move together with the id, never apart.
func (s *SQLiteStore) ReplaceOrder(ctx context.Context, oldID, newID string, newCurrent, newTarget float64) error {
	query := `UPDATE orders SET order_id = ?, current_price = ?, target_price = ? WHERE order_id = ?`
	res, err := s.db.ExecContext(ctx, query, newID, newCurrent, newTarget, oldID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[domain.OrderStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.OrderStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.OrderStatus(status)] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
