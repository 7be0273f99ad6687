package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/vending-machine/internal/core/domain"
)

var ErrDuplicateTransaction = errors.New("transaction already archived")

const mysqlDuplicateEntry = 1062

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id           VARCHAR(64) NOT NULL PRIMARY KEY,
		created_at   DATETIME(6) NOT NULL,
		total_cents  BIGINT      NOT NULL,
		change_cents BIGINT      NOT NULL,
		INDEX idx_transactions_created_at (created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS transaction_items (
		transaction_id VARCHAR(64)  NOT NULL,
		position       INT          NOT NULL,
		item_id        VARCHAR(32)  NOT NULL,
		name           VARCHAR(128) NOT NULL,
		price_cents    BIGINT       NOT NULL,
		PRIMARY KEY (transaction_id, position),
		CONSTRAINT fk_transaction_items_transaction
			FOREIGN KEY (transaction_id) REFERENCES transactions (id) ON DELETE CASCADE
	)`,
}

// MySQLAdapter archives settled transactions. A transaction row and its item
// rows are written in one database transaction.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range mysqlSchema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) SaveTransaction(ctx context.Context, t domain.Transaction) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, created_at, total_cents, change_cents)
		VALUES (?, ?, ?, ?)`,
		t.ID, t.Timestamp.UTC(), int64(t.TotalPrice), int64(t.Change),
	)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	for i, item := range t.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transaction_items (transaction_id, position, item_id, name, price_cents)
			VALUES (?, ?, ?, ?, ?)`,
			t.ID, i, item.ID, item.Name, int64(item.Price),
		)
		if err != nil {
			return fmt.Errorf("insert transaction item: %w", err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, created_at, total_cents, change_cents
		FROM transactions
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	index := make(map[string]int)
	for rows.Next() {
		var t domain.Transaction
		var total, change int64
		if err := rows.Scan(&t.ID, &t.Timestamp, &total, &change); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.TotalPrice = domain.Money(total)
		t.Change = domain.Money(change)
		index[t.ID] = len(out)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	if err := m.loadItems(ctx, out, index); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MySQLAdapter) loadItems(ctx context.Context, txs []domain.Transaction, index map[string]int) error {
	placeholders := make([]string, len(txs))
	args := make([]any, len(txs))
	for i, t := range txs {
		placeholders[i] = "?"
		args[i] = t.ID
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT transaction_id, item_id, name, price_cents
		FROM transaction_items
		WHERE transaction_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY transaction_id, position`, args...,
	)
	if err != nil {
		return fmt.Errorf("query transaction items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txID string
		var item domain.ItemSnapshot
		var price int64
		if err := rows.Scan(&txID, &item.ID, &item.Name, &price); err != nil {
			return fmt.Errorf("scan transaction item: %w", err)
		}
		item.Price = domain.Money(price)
		i := index[txID]
		txs[i].Items = append(txs[i].Items, item)
	}
	return rows.Err()
}
