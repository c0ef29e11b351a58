package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"yelp-scraper/models"
	"yelp-scraper/utils"
)

var recordColumns = []string{
	"url", "business_id", "name", "rating", "review_count", "price_range", "categories",
	"phone", "website", "latitude", "longitude", "street_address", "postal_code",
	"address_locality", "address_country", "description", "amenities", "hours", "images",
	"date_insertion",
}

const insertBatchSize = 50

// PostgresStore persists normalized listings to one PostgreSQL table per
// search, keyed by listing URL.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(dsn, table string, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: 10, BaseDelay: time.Second, Logger: logger}
	if err := retry.Do("postgres ping", db.Ping); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ps := newPostgresStore(db, table)
	if err := ps.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	logger.Info("[postgres] Connected, using table %s", table)
	return ps, nil
}

func newPostgresStore(db *sql.DB, table string) *PostgresStore {
	return &PostgresStore{db: db, table: table}
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			url              TEXT PRIMARY KEY,
			business_id      TEXT             NOT NULL,
			name             TEXT             NOT NULL DEFAULT '',
			rating           DOUBLE PRECISION NOT NULL DEFAULT 0,
			review_count     INTEGER          NOT NULL DEFAULT 0,
			price_range      TEXT             NOT NULL DEFAULT '',
			categories       TEXT             NOT NULL DEFAULT '',
			phone            TEXT             NOT NULL DEFAULT '',
			website          TEXT             NOT NULL DEFAULT '',
			latitude         DOUBLE PRECISION NOT NULL DEFAULT 0,
			longitude        DOUBLE PRECISION NOT NULL DEFAULT 0,
			street_address   TEXT             NOT NULL DEFAULT '',
			postal_code      TEXT             NOT NULL DEFAULT '',
			address_locality TEXT             NOT NULL DEFAULT '',
			address_country  TEXT             NOT NULL DEFAULT '',
			description      TEXT             NOT NULL DEFAULT '',
			amenities        TEXT             NOT NULL DEFAULT '',
			hours            TEXT             NOT NULL DEFAULT '',
			images           TEXT             NOT NULL DEFAULT '',
			date_insertion   DATE             NOT NULL DEFAULT CURRENT_DATE
		);

		CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s(business_id);
	`, pq.QuoteIdentifier(ps.table), pq.QuoteIdentifier("idx_"+ps.table+"_business_id")))
	return err
}

// Insert batch-inserts records. Listings whose URL is already stored are left
// untouched.
func (ps *PostgresStore) Insert(ctx context.Context, records []models.NormalizedRecord) error {
	for i := 0; i < len(records); i += insertBatchSize {
		end := i + insertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := ps.insertBatch(ctx, records[i:end]); err != nil {
			return fmt.Errorf("postgres: insert: %w", err)
		}
	}
	return nil
}

func (ps *PostgresStore) insertBatch(ctx context.Context, batch []models.NormalizedRecord) error {
	n := len(recordColumns)
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*n)

	for idx, r := range batch {
		placeholders := make([]string, n)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", idx*n+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			r.URL, r.BusinessID, r.Name, r.Rating, r.ReviewCount, r.PriceRange, r.Categories,
			r.Phone, r.Website, r.Latitude, r.Longitude, r.StreetAddress, r.PostalCode,
			r.AddressLocality, r.AddressCountry, r.Description, r.Amenities, r.Hours, r.Images,
			r.DateInsertion)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES %s
		ON CONFLICT (url) DO NOTHING
	`, pq.QuoteIdentifier(ps.table), strings.Join(recordColumns, ", "), strings.Join(valueStrings, ","))

	_, err := ps.db.ExecContext(ctx, query, valueArgs...)
	return err
}

// KnownIdentifiers lists every business id already stored.
func (ps *PostgresStore) KnownIdentifiers(ctx context.Context) ([]string, error) {
	return ps.distinct(ctx, "business_id")
}

// KnownURLs lists every listing URL already stored.
func (ps *PostgresStore) KnownURLs(ctx context.Context) ([]string, error) {
	return ps.distinct(ctx, "url")
}

func (ps *PostgresStore) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := ps.db.QueryContext(ctx,
		fmt.Sprintf("SELECT DISTINCT %s FROM %s", column, pq.QuoteIdentifier(ps.table)))
	if err != nil {
		return nil, fmt.Errorf("postgres: distinct %s: %w", column, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", column, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
