// Package storage defines the sinks a finished run is written to. The
// pipeline never reads from them.
package storage

import (
	"context"
	"io"

	"github.com/JakeFAU/jobmarket-crawler/internal/crawler"
)

// BlobStore persists rendered artifacts and returns a URI for each.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// ListingStore persists one run and its deduplicated listings.
type ListingStore interface {
	SaveRun(ctx context.Context, res crawler.Result) error
	Close() error
}
