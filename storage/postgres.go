package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/premint"
)

const createPremintsTableSQL = `
CREATE TABLE IF NOT EXISTS premints (
    network TEXT NOT NULL,
    collection TEXT NOT NULL,
    uid BIGINT NOT NULL,
    version BIGINT NOT NULL,
    deleted BOOLEAN NOT NULL,
    config_version TEXT NOT NULL,
    payload JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (network, collection, uid, version)
);
CREATE TABLE IF NOT EXISTS premint_uids (
    network TEXT NOT NULL,
    collection TEXT NOT NULL,
    next_uid BIGINT NOT NULL,
    PRIMARY KEY (network, collection)
);
`

// PostgresStore persists every premint version and serves the highest one.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres using the DSN and ensures the tables
// exist.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createPremintsTableSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Get returns the highest stored version.
func (p *PostgresStore) Get(ctx context.Context, network intents.Network, collection string, uid uint32) (*premint.SignedPremint, error) {
	return getLatest(ctx, p.pool, network, collection, uid, false)
}

// PostSignature inserts a new version if it supersedes the latest one.
// The latest row is locked so concurrent publishes for a uid serialize.
func (p *PostgresStore) PostSignature(ctx context.Context, sp premint.SignedPremint) error {
	payload, err := json.Marshal(sp)
	if err != nil {
		return fmt.Errorf("encode premint: %w", err)
	}
	collection := strings.ToLower(sp.CollectionAddress)

	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		current, err := getLatest(ctx, tx, sp.Network, collection, sp.Premint.UID, true)
		if err != nil && !errors.Is(err, intents.ErrNotFound) {
			return err
		}
		if err := premint.CheckSupersession(current, sp.Premint); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO premints (network, collection, uid, version, deleted, config_version, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, string(sp.Network), collection, int64(sp.Premint.UID), int64(sp.Premint.Version),
			sp.Premint.Deleted, string(sp.Premint.ConfigVersion()), payload); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
INSERT INTO premint_uids (network, collection, next_uid)
VALUES ($1, $2, $3)
ON CONFLICT (network, collection) DO UPDATE
SET next_uid = GREATEST(premint_uids.next_uid, EXCLUDED.next_uid)
`, string(sp.Network), collection, int64(sp.Premint.UID)+1)
		return err
	})
}

// NextUID reserves and returns an unused uid. Uids start at 1.
func (p *PostgresStore) NextUID(ctx context.Context, network intents.Network, collection string) (uint32, error) {
	var next int64
	err := p.pool.QueryRow(ctx, `
INSERT INTO premint_uids (network, collection, next_uid)
VALUES ($1, $2, 2)
ON CONFLICT (network, collection) DO UPDATE
SET next_uid = premint_uids.next_uid + 1
RETURNING next_uid - 1
`, string(network), strings.ToLower(collection)).Scan(&next)
	if err != nil {
		return 0, err
	}
	if next > math.MaxUint32 {
		return 0, errUIDsExhausted(network, collection)
	}
	return uint32(next), nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getLatest(ctx context.Context, q querier, network intents.Network, collection string, uid uint32, forUpdate bool) (*premint.SignedPremint, error) {
	query := `
SELECT payload
FROM premints
WHERE network = $1 AND collection = $2 AND uid = $3
ORDER BY version DESC
LIMIT 1
`
	if forUpdate {
		query += "FOR UPDATE"
	}

	var payload []byte
	if err := q.QueryRow(ctx, query, string(network), strings.ToLower(collection), int64(uid)).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(network, collection, uid)
		}
		return nil, err
	}

	var sp premint.SignedPremint
	if err := json.Unmarshal(payload, &sp); err != nil {
		return nil, fmt.Errorf("decode stored premint: %w", err)
	}
	return &sp, nil
}
