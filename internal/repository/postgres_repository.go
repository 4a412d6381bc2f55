package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c *Credentials) dsn() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(cred *Credentials) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", cred.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) RunMigrations() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "cart_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

const itemColumns = `id, user_id, product_id, quantity, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.LineItem, error) {
	var item domain.LineItem
	if err := row.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *PostgresRepository) ListItems(ctx context.Context, userID string) ([]domain.LineItem, error) {
	query := `SELECT ` + itemColumns + ` FROM cart_items WHERE user_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	items := []domain.LineItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cart item row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

func (r *PostgresRepository) AddItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.LineItem, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}

	// the WHERE skips a merge that would pass MaxQuantity, so no row comes back
	query := `INSERT INTO cart_items (id, user_id, product_id, quantity, created_at)
	          VALUES ($1, $2, $3, $4, NOW())
	          ON CONFLICT (user_id, product_id)
	          DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	          WHERE cart_items.quantity <= $5::integer - EXCLUDED.quantity
	          RETURNING ` + itemColumns

	item, err := scanItem(r.db.QueryRowContext(ctx, query,
		domain.NewLineItemID(), userID, productID, quantity, domain.MaxQuantity))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuantityLimit
	}
	if err != nil {
		return nil, fmt.Errorf("upsert cart item: %w", mapQuantityError(err))
	}
	return item, nil
}

func (r *PostgresRepository) GetItem(ctx context.Context, id string) (*domain.LineItem, error) {
	query := `SELECT ` + itemColumns + ` FROM cart_items WHERE id = $1`
	return r.one(ctx, "get cart item", query, id)
}

func (r *PostgresRepository) UpdateItemQuantity(ctx context.Context, id string, quantity int) (*domain.LineItem, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}
	query := `UPDATE cart_items SET quantity = $2 WHERE id = $1 RETURNING ` + itemColumns
	return r.one(ctx, "update cart item", query, id, quantity)
}

func (r *PostgresRepository) RemoveItem(ctx context.Context, id string) (*domain.LineItem, error) {
	query := `DELETE FROM cart_items WHERE id = $1 RETURNING ` + itemColumns
	return r.one(ctx, "delete cart item", query, id)
}

func (r *PostgresRepository) one(ctx context.Context, op, query string, args ...any) (*domain.LineItem, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapQuantityError(err))
	}
	return item, nil
}

const (
	pqNumericOutOfRange = "22003"
	pqCheckViolation    = "23514"
)

// mapQuantityError reports a quantity rejected by the column type or its
// CHECK constraint as an invalid argument.
func mapQuantityError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqNumericOutOfRange:
		return fmt.Errorf("%w: %w", ErrQuantityLimit, err)
	case pqCheckViolation:
		return fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	}
	return err
}

func (r *PostgresRepository) DeleteCart(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
