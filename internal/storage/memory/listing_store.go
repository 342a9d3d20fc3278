package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/jobmarket-crawler/internal/crawler"
	"github.com/JakeFAU/jobmarket-crawler/internal/model"
)

// ErrRunNotFound is returned when a run ID has not been saved.
var ErrRunNotFound = errors.New("run not found")

// ListingStore keeps saved runs keyed by run ID.
type ListingStore struct {
	mu    sync.RWMutex
	runs  map[string]crawler.Result
	order []string
}

// NewListingStore constructs an empty ListingStore.
func NewListingStore() *ListingStore {
	return &ListingStore{runs: make(map[string]crawler.Result)}
}

// SaveRun stores a copy of res. Saving the same run ID twice is an error.
func (s *ListingStore) SaveRun(_ context.Context, res crawler.Result) error {
	if res.RunID == "" {
		return errors.New("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[res.RunID]; exists {
		return errors.New("run already exists")
	}
	res.Listings = append([]model.JobListing(nil), res.Listings...)
	s.runs[res.RunID] = res
	s.order = append(s.order, res.RunID)
	return nil
}

// Run fetches a saved run by ID.
func (s *ListingStore) Run(_ context.Context, runID string) (crawler.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.runs[runID]
	if !ok {
		return crawler.Result{}, ErrRunNotFound
	}
	return res, nil
}

// Listings returns a copy of the listings saved for runID.
func (s *ListingStore) Listings(_ context.Context, runID string) ([]model.JobListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return append([]model.JobListing(nil), res.Listings...), nil
}

// RunIDs returns saved run IDs in save order.
func (s *ListingStore) RunIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Close is a no-op.
func (s *ListingStore) Close() error { return nil }
