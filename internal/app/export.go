package app

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/jobmarket-crawler/internal/crawler"
	"github.com/JakeFAU/jobmarket-crawler/internal/hash/sha256"
	"github.com/JakeFAU/jobmarket-crawler/internal/publisher"
	"github.com/JakeFAU/jobmarket-crawler/internal/report"
	"github.com/JakeFAU/jobmarket-crawler/internal/storage"
)

// Artifacts maps an artifact file name to the URI it was stored at.
type Artifacts map[string]string

// Checksums maps an artifact file name to the digest of its content.
type Checksums map[string]string

// Hasher fingerprints rendered artifacts.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// RunCompleted is the notification published after a run is exported.
type RunCompleted struct {
	RunID        string    `json:"run_id"`
	Query        string    `json:"query"`
	Location     string    `json:"location"`
	Listings     int       `json:"listings"`
	PagesFetched int       `json:"pages_fetched"`
	StoppedEarly bool      `json:"stopped_early"`
	TopRole      string    `json:"top_role,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
	Artifacts    Artifacts `json:"artifacts,omitempty"`
	Checksums    Checksums `json:"checksums,omitempty"`
}

// ExporterConfig controls artifact naming and notification routing.
type ExporterConfig struct {
	Prefix  string
	Formats []report.Format
	Topic   string
}

// Exporter writes a finished run to every configured sink. Nil sinks are
// skipped.
type Exporter struct {
	cfg       ExporterConfig
	blobs     storage.BlobStore
	listings  storage.ListingStore
	publisher publisher.Publisher
	hasher    Hasher
	logger    *zap.Logger
}

// NewExporter wires the sinks. Artifacts are fingerprinted with SHA-256.
func NewExporter(
	cfg ExporterConfig,
	blobs storage.BlobStore,
	listings storage.ListingStore,
	pub publisher.Publisher,
	logger *zap.Logger,
) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		cfg:       cfg,
		blobs:     blobs,
		listings:  listings,
		publisher: pub,
		hasher:    sha256.New(),
		logger:    logger,
	}
}

// Enabled reports whether any sink is configured.
func (e *Exporter) Enabled() bool {
	return e.blobs != nil || e.listings != nil || e.publisher != nil
}

// ArtifactName returns the object name used for format f.
func ArtifactName(f report.Format) string {
	switch f {
	case report.FormatMarkdown:
		return "report.md"
	case report.FormatCSV:
		return "listings.csv"
	default:
		return "result." + f.Extension()
	}
}

// ObjectPath returns the blob path of name for runID.
func (e *Exporter) ObjectPath(runID, name string) string {
	if prefix := strings.Trim(e.cfg.Prefix, "/"); prefix != "" {
		return path.Join(prefix, runID, name)
	}
	return path.Join(runID, name)
}

// Export stores the artifacts and listing rows concurrently, then publishes
// a RunCompleted event. The event is only sent when every store succeeded.
func (e *Exporter) Export(ctx context.Context, res crawler.Result) (Artifacts, error) {
	artifacts := Artifacts{}
	if res.RunID == "" {
		return artifacts, fmt.Errorf("export: run id is required")
	}

	rendered := make(map[string][]byte, len(e.cfg.Formats))
	if e.blobs != nil {
		for _, f := range e.cfg.Formats {
			var buf bytes.Buffer
			if err := report.Write(&buf, f, res); err != nil {
				return artifacts, fmt.Errorf("render %s: %w", f, err)
			}
			rendered[ArtifactName(f)] = buf.Bytes()
		}
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	for _, f := range e.cfg.Formats {
		name := ArtifactName(f)
		data, ok := rendered[name]
		if !ok {
			continue
		}
		contentType := f.ContentType()
		g.Go(func() error {
			uri, err := e.blobs.PutObject(ctx, e.ObjectPath(res.RunID, name), contentType, bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("store %s: %w", name, err)
			}
			mu.Lock()
			artifacts[name] = uri
			mu.Unlock()
			e.logger.Debug("artifact stored", zap.String("run_id", res.RunID), zap.String("uri", uri))
			return nil
		})
	}
	if e.listings != nil {
		g.Go(func() error {
			if err := e.listings.SaveRun(ctx, res); err != nil {
				return fmt.Errorf("save listings: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return artifacts, err
	}

	if e.publisher == nil {
		return artifacts, nil
	}
	checksums := make(Checksums, len(artifacts))
	for name := range artifacts {
		sum, err := e.hasher.Hash(rendered[name])
		if err != nil {
			return artifacts, fmt.Errorf("checksum %s: %w", name, err)
		}
		checksums[name] = sum
	}
	event := RunCompleted{
		RunID:        res.RunID,
		Query:        res.Query.Query,
		Location:     res.Query.Location,
		Listings:     len(res.Listings),
		PagesFetched: res.PagesFetched,
		StoppedEarly: res.StoppedEarly,
		FinishedAt:   res.FinishedAt,
		Artifacts:    artifacts,
		Checksums:    checksums,
	}
	if len(res.Stats.Titles) > 0 {
		event.TopRole = res.Stats.Titles[0].Key
	}
	id, err := e.publisher.Publish(ctx, e.cfg.Topic, event)
	if err != nil {
		return artifacts, fmt.Errorf("publish run completed: %w", err)
	}
	e.logger.Info("run published",
		zap.String("run_id", res.RunID),
		zap.String("message_id", id),
		zap.Int("artifacts", len(artifacts)),
	)
	return artifacts, nil
}
