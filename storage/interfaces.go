package storage

import (
	"context"

	"yelp-scraper/models"
)

// Store is the interface any persistence backend must satisfy. It records
// normalized listings and answers which listings a previous run already kept.
type Store interface {
	Insert(ctx context.Context, records []models.NormalizedRecord) error
	KnownIdentifiers(ctx context.Context) ([]string, error)
	KnownURLs(ctx context.Context) ([]string, error)
	Close() error
}

// RecordWriter is the interface for exporting one run's records to a file.
type RecordWriter interface {
	Write(records []models.NormalizedRecord) error
	Close() error
}
