package records

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps eligibility records in a PostgreSQL table. Used when the
// enrollment data has been mirrored out of the spreadsheet backend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS acceptance_records (
    identity TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    image_uri TEXT NOT NULL DEFAULT '',
    minted_asset_address TEXT
);
`

// NewPostgresStore connects to Postgres using the DSN and ensures the table exists.
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

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
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

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Lookup(ctx context.Context, identity string) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
SELECT identity, display_name, image_uri, COALESCE(minted_asset_address, '')
FROM acceptance_records
WHERE identity = $1
`, NormalizeIdentity(identity))

	var rec Record
	if err := row.Scan(&rec.Identity, &rec.DisplayName, &rec.ImageURI, &rec.MintedAssetAddress); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// SetAssetAddress writes the minted address. The WHERE clause enforces the
// absent-to-present transition: a repeat write of the same value is a no-op
// success, a write of a different value touches zero rows.
func (p *PostgresStore) SetAssetAddress(ctx context.Context, identity, assetAddress string) error {
	key := NormalizeIdentity(identity)

	tag, err := p.pool.Exec(ctx, `
UPDATE acceptance_records
SET minted_asset_address = $2
WHERE identity = $1
  AND (minted_asset_address IS NULL OR minted_asset_address = $2)
`, key, assetAddress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows: either the identity is unknown or the address differs.
	var existing string
	row := p.pool.QueryRow(ctx, `
SELECT COALESCE(minted_asset_address, '') FROM acceptance_records WHERE identity = $1
`, key)
	if err := row.Scan(&existing); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if existing != "" && existing != assetAddress {
		return ErrAddressConflict
	}
	return nil
}

// Seed inserts or refreshes an enrollment row. Test and bootstrap helper; the
// enrollment process owns these rows in production.
func (p *PostgresStore) Seed(ctx context.Context, rec Record) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO acceptance_records (identity, display_name, image_uri, minted_asset_address)
VALUES ($1, $2, $3, NULLIF($4, ''))
ON CONFLICT (identity) DO UPDATE
SET display_name = EXCLUDED.display_name,
    image_uri = EXCLUDED.image_uri
`, NormalizeIdentity(rec.Identity), rec.DisplayName, rec.ImageURI, rec.MintedAssetAddress)
	return err
}
