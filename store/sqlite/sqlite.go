/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:

	Implements every persistence interface of the ledger engine using SQLite.
	In production, the same patterns apply to PostgreSQL - only minor SQL
	dialect differences.

KEY TABLES:

	accounts:            Balance holders (balance mutated by the ledger only)
	vendors:             Optional transaction counterparties
	categories:          Self-referencing forest (parent_id, depth, path)
	transactions:        Ledger rows, two account references (source, destination)
	transaction_splits:  Category attribution, replaced wholesale on update
	status_history:      Append-only status transitions
	edit_history:        Append-only field-level diffs and snapshots

INDEXES:
  - idx_categories_sibling_key: Case-insensitive sibling uniqueness (Unicode-folded name_key)
  - idx_transactions_account / _destination: Per-account listing and summaries
  - idx_splits_category: Category-in-use checks before delete

MONEY & TIME:

	Decimals are stored as TEXT (decimal.Decimal implements Scanner/Valuer).
	Timestamps are stored as fixed-width UTC text so string comparison in SQL
	orders them correctly.

CONCURRENCY:

	The pool is limited to one connection. Every WithTx therefore runs alone,
	which also keeps ":memory:" databases on a single shared connection.
	Optimistic checks (version, status) are still done in the UPDATE's WHERE
	clause so they hold on a multi-connection PostgreSQL port too.

USAGE:

	store, err := sqlite.New("./data/ledger.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	queries
}

var _ ledger.TxStore = (*Store)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement; it runs against the pool or a transaction.
type queries struct {
	q querier
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, queries: queries{q: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist. New already calls it.
func (s *Store) Migrate() error {
	return s.migrate()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL,
		opening_balance TEXT NOT NULL,
		balance TEXT NOT NULL,
		transaction_fee TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_org
		ON accounts(org_id);

	CREATE TABLE IF NOT EXISTS vendors (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_vendors_org
		ON vendors(org_id);

	-- Categories (self-referencing forest, depth <= 3 enforced by the service)
	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL,
		name_key TEXT NOT NULL DEFAULT '',
		parent_id TEXT REFERENCES categories(id),
		depth INTEGER NOT NULL DEFAULT 0,
		path TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_categories_parent
		ON categories(org_id, parent_id);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		destination_account_id TEXT REFERENCES accounts(id),
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		fee TEXT NOT NULL,
		date TEXT NOT NULL,
		vendor_id TEXT REFERENCES vendors(id),
		memo TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'unconfirmed',
		confirmed_at TEXT,
		reconciled_at TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_account
		ON transactions(account_id, date DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_destination
		ON transactions(destination_account_id) WHERE destination_account_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_org_date
		ON transactions(org_id, date DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_status
		ON transactions(org_id, status);

	CREATE TABLE IF NOT EXISTS transaction_splits (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
		category_id TEXT NOT NULL REFERENCES categories(id),
		amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_splits_transaction
		ON transaction_splits(transaction_id);
	CREATE INDEX IF NOT EXISTS idx_splits_category
		ON transaction_splits(category_id);

	-- Audit logs (append-only, outlive deleted transactions)
	CREATE TABLE IF NOT EXISTS status_history (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		from_status TEXT,
		to_status TEXT NOT NULL,
		actor TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_status_history_tx
		ON status_history(transaction_id, created_at);

	CREATE TABLE IF NOT EXISTS edit_history (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		org_id TEXT NOT NULL,
		actor TEXT NOT NULL,
		kind TEXT NOT NULL,
		changes_json TEXT NOT NULL,
		snapshot_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_edit_history_tx
		ON edit_history(org_id, transaction_id, created_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.migrateNameKeys()
}

// migrateNameKeys adds and backfills categories.name_key on databases
// created before it existed, then swaps the sibling index over to it.
// SQLite's lower() folds ASCII only, so the key is computed in Go.
func (s *Store) migrateNameKeys() error {
	rows, err := s.db.Query("SELECT name FROM pragma_table_info('categories') WHERE name = 'name_key'")
	if err != nil {
		return fmt.Errorf("failed to inspect categories: %w", err)
	}
	hasKey := rows.Next()
	rows.Close()

	if !hasKey {
		if _, err := s.db.Exec("ALTER TABLE categories ADD COLUMN name_key TEXT NOT NULL DEFAULT ''"); err != nil {
			return fmt.Errorf("failed to add name_key: %w", err)
		}
	}

	names, err := s.db.Query("SELECT id, name FROM categories WHERE name_key = ''")
	if err != nil {
		return fmt.Errorf("failed to read category names: %w", err)
	}
	keys := make(map[string]string)
	for names.Next() {
		var id, name string
		if err := names.Scan(&id, &name); err != nil {
			names.Close()
			return fmt.Errorf("failed to scan category name: %w", err)
		}
		keys[id] = ledger.NameKey(name)
	}
	names.Close()
	for id, key := range keys {
		if _, err := s.db.Exec("UPDATE categories SET name_key = ? WHERE id = ?", key, id); err != nil {
			return fmt.Errorf("failed to backfill name_key: %w", err)
		}
	}

	_, err = s.db.Exec(`
	DROP INDEX IF EXISTS idx_categories_sibling_name;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_sibling_key
		ON categories(org_id, COALESCE(parent_id, ''), name_key);
	`)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

const accountColumns = `id, org_id, name, opening_balance, balance, transaction_fee, active, created_at, updated_at`

func (s *queries) GetAccount(ctx context.Context, orgID ledger.OrgID, id ledger.AccountID) (*ledger.Account, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ? AND org_id = ?", id, orgID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

func (s *queries) ListAccounts(ctx context.Context, orgID ledger.OrgID) ([]ledger.Account, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE org_id = ? ORDER BY name", orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *queries) InsertAccount(ctx context.Context, a ledger.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var fee decimal.NullDecimal
	if a.TransactionFee != nil {
		fee = decimal.NewNullDecimal(*a.TransactionFee)
	}
	_, err := s.q.ExecContext(ctx, query,
		a.ID, a.OrgID, a.Name, a.OpeningBalance, a.Balance, fee, a.Active,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return ledger.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// AdjustBalance reads and rewrites the balance in decimal so no precision is
// lost to SQLite's numeric affinity. Call it inside WithTx.
func (s *queries) AdjustBalance(ctx context.Context, id ledger.AccountID, delta decimal.Decimal) error {
	var balance decimal.Decimal
	err := s.q.QueryRowContext(ctx, "SELECT balance FROM accounts WHERE id = ?", id).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}

	_, err = s.q.ExecContext(ctx,
		"UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?",
		balance.Add(delta), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust balance: %w", err)
	}
	return nil
}

func (s *queries) SetAccountActive(ctx context.Context, orgID ledger.OrgID, id ledger.AccountID, active bool) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE accounts SET active = ?, updated_at = ? WHERE id = ? AND org_id = ?",
		active, formatTime(time.Now()), id, orgID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return requireAffected(res, ledger.ErrAccountNotFound)
}

func (s *queries) GetVendor(ctx context.Context, orgID ledger.OrgID, id ledger.VendorID) (*ledger.Vendor, error) {
	var (
		v         ledger.Vendor
		createdAt string
	)
	err := s.q.QueryRowContext(ctx,
		"SELECT id, org_id, name, active, created_at FROM vendors WHERE id = ? AND org_id = ?", id, orgID,
	).Scan(&v.ID, &v.OrgID, &v.Name, &v.Active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrVendorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}
	v.CreatedAt = parseTime(createdAt)
	return &v, nil
}

func (s *queries) ListVendors(ctx context.Context, orgID ledger.OrgID) ([]ledger.Vendor, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, org_id, name, active, created_at FROM vendors WHERE org_id = ? ORDER BY name", orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []ledger.Vendor
	for rows.Next() {
		var (
			v         ledger.Vendor
			createdAt string
		)
		if err := rows.Scan(&v.ID, &v.OrgID, &v.Name, &v.Active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		v.CreatedAt = parseTime(createdAt)
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

func (s *queries) InsertVendor(ctx context.Context, v ledger.Vendor) error {
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO vendors (id, org_id, name, active, created_at) VALUES (?, ?, ?, ?, ?)",
		v.ID, v.OrgID, v.Name, v.Active, formatTime(v.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return ledger.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert vendor: %w", err)
	}
	return nil
}

// =============================================================================
// CATEGORY STORE
// =============================================================================

const categoryColumns = `id, org_id, name, parent_id, depth, path, active, created_at, updated_at`

func (s *queries) GetCategory(ctx context.Context, orgID ledger.OrgID, id ledger.CategoryID) (*ledger.Category, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE id = ? AND org_id = ?", id, orgID)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

func (s *queries) FindCategoryByName(ctx context.Context, orgID ledger.OrgID, parentID *ledger.CategoryID, name string) (*ledger.Category, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE org_id = ? AND COALESCE(parent_id, '') = ? AND name_key = ?
		LIMIT 1
	`, orgID, parentKey(parentID), ledger.NameKey(name))
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return &c, nil
}

func (s *queries) ListCategories(ctx context.Context, orgID ledger.OrgID, f ledger.CategoryFilter) ([]ledger.Category, error) {
	where := []string{"org_id = ?"}
	args := []any{orgID}

	if f.RootsOnly {
		where = append(where, "parent_id IS NULL")
	}
	if f.ParentID != nil {
		where = append(where, "parent_id = ?")
		args = append(args, *f.ParentID)
	}
	if f.Active != nil {
		where = append(where, "active = ?")
		args = append(args, *f.Active)
	}
	if f.Depth != nil {
		where = append(where, "depth = ?")
		args = append(args, *f.Depth)
	}
	if f.NameContains != "" {
		where = append(where, "name_key LIKE ? ESCAPE '\\'")
		args = append(args, likePattern(f.NameContains))
	}

	query := "SELECT " + categoryColumns + " FROM categories WHERE " +
		strings.Join(where, " AND ") + " ORDER BY depth, name_key"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []ledger.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *queries) ChildCategories(ctx context.Context, orgID ledger.OrgID, parentID ledger.CategoryID) ([]ledger.Category, error) {
	return s.ListCategories(ctx, orgID, ledger.CategoryFilter{ParentID: &parentID})
}

func (s *queries) InsertCategory(ctx context.Context, c ledger.Category) error {
	query := `
		INSERT INTO categories (` + categoryColumns + `, name_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.q.ExecContext(ctx, query,
		c.ID, c.OrgID, c.Name, c.ParentID, c.Depth, c.Path, c.Active,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt), ledger.NameKey(c.Name),
	)
	if isUniqueConstraintError(err) {
		return ledger.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

func (s *queries) UpdateCategory(ctx context.Context, c ledger.Category) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, name_key = ?, parent_id = ?, depth = ?, path = ?, active = ?, updated_at = ?
		WHERE id = ? AND org_id = ?
	`, c.Name, ledger.NameKey(c.Name), c.ParentID, c.Depth, c.Path, c.Active, formatTime(c.UpdatedAt), c.ID, c.OrgID)
	if isUniqueConstraintError(err) {
		return ledger.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return requireAffected(res, ledger.ErrCategoryNotFound)
}

func (s *queries) DeleteCategory(ctx context.Context, orgID ledger.OrgID, id ledger.CategoryID) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM categories WHERE id = ? AND org_id = ?", id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return requireAffected(res, ledger.ErrCategoryNotFound)
}

func (s *queries) CountSplitsByCategory(ctx context.Context, id ledger.CategoryID) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transaction_splits WHERE category_id = ?", id,
	).Scan(&count)
	return count, err
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

const transactionColumns = `id, org_id, account_id, destination_account_id, tx_type, amount, fee, date,
	vendor_id, memo, status, confirmed_at, reconciled_at, version, created_at, updated_at`

func (s *queries) GetTransaction(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID) (*ledger.Transaction, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND org_id = ?", id, orgID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if tx.Splits, err = s.loadSplits(ctx, tx.ID); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *queries) ListTransactions(ctx context.Context, orgID ledger.OrgID, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	where := []string{"t.org_id = ?"}
	args := []any{orgID}

	if f.AccountID != nil {
		where = append(where, "(t.account_id = ? OR t.destination_account_id = ?)")
		args = append(args, *f.AccountID, *f.AccountID)
	}
	if f.DateFrom != nil {
		where = append(where, "t.date >= ?")
		args = append(args, formatTime(*f.DateFrom))
	}
	if f.DateTo != nil {
		where = append(where, "t.date <= ?")
		args = append(args, formatTime(*f.DateTo))
	}
	if f.Type != nil {
		where = append(where, "t.tx_type = ?")
		args = append(args, *f.Type)
	}
	if f.VendorID != nil {
		where = append(where, "t.vendor_id = ?")
		args = append(args, *f.VendorID)
	}
	if f.Status != nil {
		where = append(where, "t.status = ?")
		args = append(args, *f.Status)
	}
	where, args = appendTimeRange(where, args, "t.confirmed_at", f.ClearedFrom, f.ClearedTo)
	where, args = appendTimeRange(where, args, "t.reconciled_at", f.ReconciledFrom, f.ReconciledTo)
	if f.CategoryName != "" {
		where = append(where, `EXISTS (
			SELECT 1 FROM transaction_splits s
			JOIN categories c ON c.id = s.category_id
			WHERE s.transaction_id = t.id AND c.name_key LIKE ? ESCAPE '\')`)
		args = append(args, likePattern(f.CategoryName))
	}

	query := "SELECT " + prefixColumns("t", transactionColumns) + " FROM transactions t WHERE " +
		strings.Join(where, " AND ") + " ORDER BY t.date DESC, t.created_at DESC, t.id DESC"
	if f.Limit > 0 || f.Offset > 0 {
		limit := f.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, f.Offset)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}

	var transactions []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Close before loading splits: the pool has a single connection.
	rows.Close()

	for i := range transactions {
		if transactions[i].Splits, err = s.loadSplits(ctx, transactions[i].ID); err != nil {
			return nil, err
		}
	}
	return transactions, nil
}

func (s *queries) InsertTransaction(ctx context.Context, tx ledger.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.q.ExecContext(ctx, query,
		tx.ID, tx.OrgID, tx.AccountID, tx.DestinationAccountID, tx.Type,
		tx.Amount, tx.Fee, formatTime(tx.Date), tx.VendorID, tx.Memo, tx.Status,
		formatTimePtr(tx.ConfirmedAt), formatTimePtr(tx.ReconciledAt), tx.Version,
		formatTime(tx.CreatedAt), formatTime(tx.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return ledger.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return s.insertSplits(ctx, tx.ID, tx.Splits)
}

func (s *queries) UpdateTransaction(ctx context.Context, tx ledger.Transaction, expectedVersion int) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE transactions
		SET destination_account_id = ?, tx_type = ?, amount = ?, fee = ?, date = ?,
		    vendor_id = ?, memo = ?, version = ?, updated_at = ?
		WHERE id = ? AND org_id = ? AND version = ?
	`,
		tx.DestinationAccountID, tx.Type, tx.Amount, tx.Fee, formatTime(tx.Date),
		tx.VendorID, tx.Memo, tx.Version, formatTime(tx.UpdatedAt),
		tx.ID, tx.OrgID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.missingOr(ctx, tx.OrgID, tx.ID, ledger.ErrVersionConflict)
	}
	return nil
}

func (s *queries) UpdateStatus(ctx context.Context, tx ledger.Transaction, from ledger.Status) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, confirmed_at = ?, reconciled_at = ?, updated_at = ?
		WHERE id = ? AND org_id = ? AND status = ?
	`,
		tx.Status, formatTimePtr(tx.ConfirmedAt), formatTimePtr(tx.ReconciledAt), formatTime(tx.UpdatedAt),
		tx.ID, tx.OrgID, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.missingOr(ctx, tx.OrgID, tx.ID, ledger.ErrStatusConflict)
	}
	return nil
}

func (s *queries) ReplaceSplits(ctx context.Context, id ledger.TransactionID, splits []ledger.Split) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM transaction_splits WHERE transaction_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}
	return s.insertSplits(ctx, id, splits)
}

func (s *queries) DeleteTransaction(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM transaction_splits WHERE transaction_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}
	res, err := s.q.ExecContext(ctx, "DELETE FROM transactions WHERE id = ? AND org_id = ?", id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return requireAffected(res, ledger.ErrTransactionNotFound)
}

func (s *queries) insertSplits(ctx context.Context, id ledger.TransactionID, splits []ledger.Split) error {
	for _, sp := range splits {
		_, err := s.q.ExecContext(ctx,
			"INSERT INTO transaction_splits (id, transaction_id, category_id, amount) VALUES (?, ?, ?, ?)",
			sp.ID, id, sp.CategoryID, sp.Amount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}
	return nil
}

func (s *queries) loadSplits(ctx context.Context, id ledger.TransactionID) ([]ledger.Split, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, transaction_id, category_id, amount FROM transaction_splits WHERE transaction_id = ? ORDER BY rowid",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query splits: %w", err)
	}
	defer rows.Close()

	var splits []ledger.Split
	for rows.Next() {
		var sp ledger.Split
		if err := rows.Scan(&sp.ID, &sp.TransactionID, &sp.CategoryID, &sp.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, sp)
	}
	return splits, rows.Err()
}

// missingOr returns ErrTransactionNotFound if the row is gone, else conflict.
func (s *queries) missingOr(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID, conflict error) error {
	var count int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE id = ? AND org_id = ?", id, orgID,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		return ledger.ErrTransactionNotFound
	}
	return conflict
}

// =============================================================================
// AUDIT STORE
// =============================================================================

func (s *queries) AppendStatusHistory(ctx context.Context, e ledger.StatusHistoryEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO status_history (id, transaction_id, from_status, to_status, actor, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.TransactionID, e.FromStatus, e.ToStatus, e.Actor, e.Notes, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

func (s *queries) StatusHistory(ctx context.Context, id ledger.TransactionID) ([]ledger.StatusHistoryEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, transaction_id, from_status, to_status, actor, notes, created_at
		FROM status_history
		WHERE transaction_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var entries []ledger.StatusHistoryEntry
	for rows.Next() {
		var (
			e         ledger.StatusHistoryEntry
			from      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.TransactionID, &from, &e.ToStatus, &e.Actor, &e.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		if from.Valid {
			st := ledger.Status(from.String)
			e.FromStatus = &st
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *queries) AppendEdit(ctx context.Context, e ledger.EditHistoryEntry) error {
	changes := e.Changes
	if changes == nil {
		changes = []ledger.FieldChange{}
	}
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("failed to encode changes: %w", err)
	}
	var snapshotJSON sql.NullString
	if e.Snapshot != nil {
		b, err := json.Marshal(e.Snapshot)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		snapshotJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO edit_history (id, transaction_id, org_id, actor, kind, changes_json, snapshot_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.TransactionID, e.OrgID, e.Actor, e.Kind, string(changesJSON), snapshotJSON, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append edit history: %w", err)
	}
	return nil
}

func (s *queries) EditHistory(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID, limit, offset int) ([]ledger.EditHistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, transaction_id, org_id, actor, kind, changes_json, snapshot_json, created_at
		FROM edit_history
		WHERE org_id = ? AND transaction_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, orgID, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query edit history: %w", err)
	}
	defer rows.Close()

	var entries []ledger.EditHistoryEntry
	for rows.Next() {
		var (
			e            ledger.EditHistoryEntry
			changesJSON  string
			snapshotJSON sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.OrgID, &e.Actor, &e.Kind, &changesJSON, &snapshotJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan edit history: %w", err)
		}
		if err := json.Unmarshal([]byte(changesJSON), &e.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode changes: %w", err)
		}
		if snapshotJSON.Valid {
			var snap ledger.Transaction
			if err := json.Unmarshal([]byte(snapshotJSON.String), &snap); err != nil {
				return nil, fmt.Errorf("failed to decode snapshot: %w", err)
			}
			e.Snapshot = &snap
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *queries) CountEdits(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM edit_history WHERE org_id = ? AND transaction_id = ?", orgID, id,
	).Scan(&count)
	return count, err
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (ledger.Account, error) {
	var (
		a                    ledger.Account
		fee                  decimal.NullDecimal
		createdAt, updatedAt string
	)
	err := row.Scan(&a.ID, &a.OrgID, &a.Name, &a.OpeningBalance, &a.Balance, &fee, &a.Active, &createdAt, &updatedAt)
	if err != nil {
		return a, err
	}
	if fee.Valid {
		a.TransactionFee = &fee.Decimal
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

func scanCategory(row scanner) (ledger.Category, error) {
	var (
		c                    ledger.Category
		parentID, path       sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &parentID, &c.Depth, &path, &c.Active, &createdAt, &updatedAt)
	if err != nil {
		return c, err
	}
	if parentID.Valid {
		p := ledger.CategoryID(parentID.String)
		c.ParentID = &p
	}
	if path.Valid {
		c.Path = &path.String
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

func scanTransaction(row scanner) (ledger.Transaction, error) {
	var (
		tx                         ledger.Transaction
		destination, vendor        sql.NullString
		date, createdAt, updatedAt string
		confirmedAt, reconciledAt  sql.NullString
	)
	err := row.Scan(
		&tx.ID, &tx.OrgID, &tx.AccountID, &destination, &tx.Type, &tx.Amount, &tx.Fee, &date,
		&vendor, &tx.Memo, &tx.Status, &confirmedAt, &reconciledAt, &tx.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return tx, err
	}
	if destination.Valid {
		d := ledger.AccountID(destination.String)
		tx.DestinationAccountID = &d
	}
	if vendor.Valid {
		v := ledger.VendorID(vendor.String)
		tx.VendorID = &v
	}
	tx.Date = parseTime(date)
	tx.ConfirmedAt = parseTimePtr(confirmedAt)
	tx.ReconciledAt = parseTimePtr(reconciledAt)
	tx.CreatedAt = parseTime(createdAt)
	tx.UpdatedAt = parseTime(updatedAt)
	return tx, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func appendTimeRange(where []string, args []any, column string, from, to *time.Time) ([]string, []any) {
	if from != nil {
		where = append(where, column+" >= ?")
		args = append(args, formatTime(*from))
	}
	if to != nil {
		where = append(where, column+" <= ?")
		args = append(args, formatTime(*to))
	}
	return where, args
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// likePattern builds a case-insensitive substring pattern, escaping wildcards.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(ledger.NameKey(s)) + "%"
}

func parentKey(id *ledger.CategoryID) string {
	if id == nil {
		return ""
	}
	return string(*id)
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
