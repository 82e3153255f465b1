package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/stock-service/internal/core/domain"
	"github.com/rl1809/stock-service/internal/port"
)

const stockColumns = `stock_code, product_code, quantity, version, created_at, updated_at`

// MySQL error numbers translated to port.ErrConflict.
const (
	errDuplicateEntry     = 1062
	errRowIsReferenced    = 1451
	errNoReferencedRow    = 1452
	errCheckConstraintHit = 3819
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetByProductCode(ctx context.Context, productCode int64) (domain.StockRecord, error) {
	return scanStock(m.db.QueryRowContext(ctx, `
		SELECT `+stockColumns+`
		FROM stock WHERE product_code = ?`, productCode,
	), productCode)
}

func scanStock(row *sql.Row, productCode int64) (domain.StockRecord, error) {
	var s domain.StockRecord
	err := row.Scan(&s.StockCode, &s.ProductCode, &s.Quantity, &s.Version, &s.CreatedAt, &s.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.StockRecord{}, fmt.Errorf("product %d: %w", productCode, port.ErrNotFound)
	}
	if err != nil {
		return domain.StockRecord{}, translate(fmt.Errorf("query stock: %w", err))
	}

	return s, nil
}

func (m *MySQLAdapter) Decrement(ctx context.Context, productCode int64, quantity int, at time.Time) (domain.StockRecord, error) {
	if quantity <= 0 {
		return domain.StockRecord{}, fmt.Errorf("decrement stock: non-positive quantity %d", quantity)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StockRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE stock
		SET quantity = quantity - ?, version = version + 1, updated_at = ?
		WHERE product_code = ? AND quantity >= ?`,
		quantity, at, productCode, quantity,
	)
	if err != nil {
		return domain.StockRecord{}, translate(fmt.Errorf("decrement stock: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.StockRecord{}, fmt.Errorf("decrement stock rows affected: %w", err)
	}

	s, err := scanStock(tx.QueryRowContext(ctx, `
		SELECT `+stockColumns+`
		FROM stock WHERE product_code = ?`, productCode,
	), productCode)
	if err != nil {
		return domain.StockRecord{}, err
	}
	if rows == 0 {
		return s, fmt.Errorf("product %d has %d, requested %d: %w", productCode, s.Quantity, quantity, port.ErrInsufficientStock)
	}

	if err := tx.Commit(); err != nil {
		return domain.StockRecord{}, translate(fmt.Errorf("commit decrement: %w", err))
	}
	return s, nil
}

func (m *MySQLAdapter) Create(ctx context.Context, productCode int64, quantity int) (domain.StockRecord, error) {
	if quantity < 0 {
		return domain.StockRecord{}, fmt.Errorf("create stock: negative quantity %d", quantity)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO stock (product_code, quantity, version, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)`,
		productCode, quantity, now, now,
	)
	if err != nil {
		return domain.StockRecord{}, translate(fmt.Errorf("insert stock: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return domain.StockRecord{}, fmt.Errorf("insert stock id: %w", err)
	}

	return domain.StockRecord{
		StockCode:   id,
		ProductCode: productCode,
		Quantity:    quantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// translate tags constraint violations with port.ErrConflict and leaves everything else as is.
func translate(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}

	switch myErr.Number {
	case errDuplicateEntry, errRowIsReferenced, errNoReferencedRow, errCheckConstraintHit:
		return fmt.Errorf("%w: %w", port.ErrConflict, err)
	default:
		return err
	}
}
