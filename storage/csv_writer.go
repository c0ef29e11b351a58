package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"yelp-scraper/models"
)

var csvHeader = []string{
	"business_id", "url", "name", "rating", "review_count", "price_range", "categories",
	"phone", "website", "latitude", "longitude", "street_address", "postal_code",
	"address_locality", "address_country", "description", "amenities", "hours", "images",
	"date_insertion",
}

// CSVWriter writes normalized records to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	// Write header
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// Write appends one row per record.
func (c *CSVWriter) Write(records []models.NormalizedRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		row := []string{
			r.BusinessID,
			r.URL,
			r.Name,
			strconv.FormatFloat(r.Rating, 'f', -1, 64),
			strconv.Itoa(r.ReviewCount),
			r.PriceRange,
			r.Categories,
			r.Phone,
			r.Website,
			strconv.FormatFloat(r.Latitude, 'f', -1, 64),
			strconv.FormatFloat(r.Longitude, 'f', -1, 64),
			r.StreetAddress,
			r.PostalCode,
			r.AddressLocality,
			r.AddressCountry,
			r.Description,
			r.Amenities,
			r.Hours,
			r.Images,
			r.DateInsertion.Format("2006-01-02"),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
