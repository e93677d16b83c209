package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteProductStore persists products to SQLite.
type SQLiteProductStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewSQLiteProductStore opens (or creates) a product store at path. Use
// ":memory:" for testing.
func NewSQLiteProductStore(path string) (*SQLiteProductStore, error) {
	db, err := openDatabase(path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			code TEXT NOT NULL,
			price REAL NOT NULL,
			model TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create products table: %w", err)
	}

	return &SQLiteProductStore{db: db}, nil
}

// Create implements ProductStore.
func (s *SQLiteProductStore) Create(ctx context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Product{}, ErrStoreClosed
	}

	p.ID = uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, code, price, model)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Code, p.Price, p.Model)
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

// GetByID implements ProductStore.
func (s *SQLiteProductStore) GetByID(ctx context.Context, id string) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Product{}, ErrStoreClosed
	}
	return s.getLocked(ctx, id)
}

func (s *SQLiteProductStore) getLocked(ctx context.Context, id string) (Product, error) {
	var p Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, code, price, model FROM products WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Code, &p.Price, &p.Model)
	if err == sql.ErrNoRows {
		return Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Product{}, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

// GetByIDs implements ProductStore.
func (s *SQLiteProductStore) GetByIDs(ctx context.Context, ids []string) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		p, err := s.getLocked(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// List implements ProductStore.
func (s *SQLiteProductStore) List(ctx context.Context) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, code, price, model FROM products ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Code, &p.Price, &p.Model); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update implements ProductStore.
func (s *SQLiteProductStore) Update(ctx context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Product{}, ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET name = ?, code = ?, price = ?, model = ? WHERE id = ?
	`, p.Name, p.Code, p.Price, p.Model, p.ID)
	if err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	if n == 0 {
		return Product{}, fmt.Errorf("product %s: %w", p.ID, ErrNotFound)
	}
	return p, nil
}

// Delete implements ProductStore.
func (s *SQLiteProductStore) Delete(ctx context.Context, id string) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Product{}, ErrStoreClosed
	}

	p, err := s.getLocked(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id); err != nil {
		return Product{}, fmt.Errorf("delete product: %w", err)
	}
	return p, nil
}

// Close closes the underlying database.
func (s *SQLiteProductStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// SQLiteOrderStore persists orders to SQLite. Line items are stored as a
// JSON column; orders are only ever read whole.
type SQLiteOrderStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewSQLiteOrderStore opens (or creates) an order store at path. Use
// ":memory:" for testing.
func NewSQLiteOrderStore(path string) (*SQLiteOrderStore, error) {
	db, err := openDatabase(path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			email TEXT NOT NULL,
			id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			payment TEXT NOT NULL,
			total_price REAL NOT NULL,
			shipping_type TEXT NOT NULL,
			shipping_carrier TEXT NOT NULL,
			products TEXT NOT NULL,
			PRIMARY KEY (email, id)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create orders table: %w", err)
	}

	return &SQLiteOrderStore{db: db}, nil
}

// Create implements OrderStore.
func (s *SQLiteOrderStore) Create(ctx context.Context, o Order) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Order{}, ErrStoreClosed
	}

	o.ID = NewOrderID()
	o.CreatedAt = time.Now().UnixMilli()

	products, err := json.Marshal(o.Products)
	if err != nil {
		return Order{}, fmt.Errorf("marshal line items: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (email, id, created_at, payment, total_price, shipping_type, shipping_carrier, products)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, o.Email, o.ID, o.CreatedAt, o.Billing.Payment, o.Billing.TotalPrice,
		o.Shipping.Type, o.Shipping.Carrier, products)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	return o, nil
}

// Get implements OrderStore.
func (s *SQLiteOrderStore) Get(ctx context.Context, email, id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Order{}, ErrStoreClosed
	}
	return s.getLocked(ctx, email, id)
}

func (s *SQLiteOrderStore) getLocked(ctx context.Context, email, id string) (Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT email, id, created_at, payment, total_price, shipping_type, shipping_carrier, products
		FROM orders WHERE email = ? AND id = ?
	`, email, id)

	o, err := scanOrder(row.Scan)
	if err == sql.ErrNoRows {
		return Order{}, fmt.Errorf("order %s for %s: %w", id, email, ErrNotFound)
	}
	if err != nil {
		return Order{}, fmt.Errorf("query order: %w", err)
	}
	return o, nil
}

// ListByEmail implements OrderStore.
func (s *SQLiteOrderStore) ListByEmail(ctx context.Context, email string) ([]Order, error) {
	return s.list(ctx, "WHERE email = ?", email)
}

// List implements OrderStore.
func (s *SQLiteOrderStore) List(ctx context.Context) ([]Order, error) {
	return s.list(ctx, "")
}

func (s *SQLiteOrderStore) list(ctx context.Context, where string, args ...any) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := strings.TrimSpace(fmt.Sprintf(`
		SELECT email, id, created_at, payment, total_price, shipping_type, shipping_carrier, products
		FROM orders %s ORDER BY created_at, id
	`, where))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Delete implements OrderStore.
func (s *SQLiteOrderStore) Delete(ctx context.Context, email, id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Order{}, ErrStoreClosed
	}

	o, err := s.getLocked(ctx, email, id)
	if err != nil {
		return Order{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM orders WHERE email = ? AND id = ?
	`, email, id); err != nil {
		return Order{}, fmt.Errorf("delete order: %w", err)
	}
	return o, nil
}

// Close closes the underlying database.
func (s *SQLiteOrderStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func scanOrder(scan func(dest ...any) error) (Order, error) {
	var (
		o        Order
		products []byte
	)
	if err := scan(&o.Email, &o.ID, &o.CreatedAt, &o.Billing.Payment,
		&o.Billing.TotalPrice, &o.Shipping.Type, &o.Shipping.Carrier, &products); err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(products, &o.Products); err != nil {
		return Order{}, fmt.Errorf("unmarshal line items: %w", err)
	}
	return o, nil
}

func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	return db, nil
}
