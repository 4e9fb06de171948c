package db

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xtrntr/auctionhouse/internal/ledger"
	"github.com/xtrntr/auctionhouse/internal/models"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

const uniqueViolation = "23505"

// DB wraps a PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB initializes a new database connection pool
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close(ctx context.Context) error {
	db.Pool.Close()
	return nil
}

// Migrate applies a schema script
func (db *DB) Migrate(ctx context.Context, script string) error {
	if _, err := db.Pool.Exec(ctx, script); err != nil {
		return fmt.Errorf("failed to apply migration: %w", err)
	}
	return nil
}

// CreateUser inserts a new user bound to a wallet identity
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string, identity solana.PublicKey) (*models.User, error) {
	var identityText string
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"INSERT INTO users (username, password_hash, identity) VALUES ($1, $2, $3) RETURNING id, username, password_hash, identity, created_at",
		username, passwordHash, identity.String()).Scan(&user.ID, &user.Username, &user.PasswordHash, &identityText, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if user.Identity, err = solana.PublicKeyFromBase58(identityText); err != nil {
		return nil, fmt.Errorf("failed to parse identity: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var identityText string
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, username, password_hash, identity, created_at FROM users WHERE username = $1",
		username).Scan(&user.ID, &user.Username, &user.PasswordHash, &identityText, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.Identity, err = solana.PublicKeyFromBase58(identityText); err != nil {
		return nil, fmt.Errorf("failed to parse identity: %w", err)
	}
	return user, nil
}

// Commit persists the change set of one ledger invocation in a single
// transaction. It implements ledger.Journal.
func (db *DB) Commit(ctx context.Context, changes []ledger.Change) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, c := range changes {
		if c.Account == nil {
			batch.Queue("DELETE FROM accounts WHERE address = $1", c.Address.Bytes())
			continue
		}
		if c.Account.Lamports > math.MaxInt64 {
			return fmt.Errorf("account %s: lamports %d out of range", c.Address, c.Account.Lamports)
		}
		data := c.Account.Data
		if data == nil {
			data = []byte{}
		}
		batch.Queue(`
			INSERT INTO accounts (address, lamports, owner, data) VALUES ($1, $2, $3, $4)
			ON CONFLICT (address) DO UPDATE
			SET lamports = EXCLUDED.lamports, owner = EXCLUDED.owner, data = EXCLUDED.data, updated_at = NOW()`,
			c.Address.Bytes(), int64(c.Account.Lamports), c.Account.Owner.Bytes(), data)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to write accounts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadAccounts reads every persisted ledger account
func (db *DB) LoadAccounts(ctx context.Context) (map[solana.PublicKey]*ledger.Account, error) {
	rows, err := db.Pool.Query(ctx, "SELECT address, lamports, owner, data FROM accounts")
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	defer rows.Close()

	accounts := make(map[solana.PublicKey]*ledger.Account)
	for rows.Next() {
		var address, owner, data []byte
		var lamports int64
		if err := rows.Scan(&address, &lamports, &owner, &data); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts[solana.PublicKeyFromBytes(address)] = &ledger.Account{
			Lamports: uint64(lamports),
			Owner:    solana.PublicKeyFromBytes(owner),
			Data:     data,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	return accounts, nil
}
