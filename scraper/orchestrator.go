package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"agency_listings/config"
	"agency_listings/models"
	"agency_listings/services"
	"agency_listings/storage"
)

var ErrRunInProgress = errors.New("a fetch run is already in progress")

// RunStore records run history. *storage.SQLiteStore implements it.
type RunStore interface {
	CreateRun(run *models.FetchRun) (int64, error)
	UpdateRun(run *models.FetchRun) error
	SaveFeedCounts(runID int64, counts []models.FeedCount) error
	Log(runID *int64, level models.LogLevel, message, feed string) error
}

// Uploader publishes the written document. *storage.S3Uploader implements it.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// Archiver keeps listing history. *storage.PostgresStore implements it.
type Archiver interface {
	Archive(ctx context.Context, runID uuid.UUID, rows []storage.ArchiveRow) error
}

type RunResult struct {
	Run     models.FetchRun
	Feeds   []models.Feed
	Written int
}

type Orchestrator struct {
	cfg     *config.Config
	fetcher Fetcher
	writer  *storage.JSONWriter
	mu      sync.Mutex

	store    RunStore
	uploader Uploader
	archive  Archiver
}

func NewOrchestrator(cfg *config.Config, fetcher Fetcher, writer *storage.JSONWriter) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		fetcher: fetcher,
		writer:  writer,
	}
}

// SetSinks injects the optional run store, publisher and archive. Any of
// them may be nil.
func (o *Orchestrator) SetSinks(store RunStore, uploader Uploader, archive Archiver) {
	o.store = store
	o.uploader = uploader
	o.archive = archive
}

// Run fetches every configured feed, builds the output document and writes
// it. A required-feed failure aborts the run before anything is written.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	if !o.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer o.mu.Unlock()

	result := &RunResult{
		Run: models.FetchRun{
			UUID:       uuid.New(),
			AgentKey:   o.cfg.Agent.Key,
			StartedAt:  time.Now(),
			Status:     models.RunStatusRunning,
			OutputPath: o.writer.Path(),
		},
	}
	run := &result.Run

	if o.store != nil {
		id, err := o.store.CreateRun(run)
		if err != nil {
			slog.Warn("could not record run", "error", err)
		} else {
			run.ID = id
		}
	}

	o.log(run, models.LogLevelInfo, fmt.Sprintf("Starting fetch for agent %s (%d feeds)", o.cfg.Agent.Key, len(o.cfg.Feeds)), "")

	err := o.run(ctx, result)
	o.finish(run, err)
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, result *RunResult) error {
	run := &result.Run

	feeds, err := o.fetchFeeds(ctx)
	result.Feeds = feeds
	o.reportFeeds(run, feeds)
	if err != nil {
		return err
	}

	byName := make(map[string][]models.Listing, len(feeds))
	for i := range feeds {
		feeds[i].Items = services.NormalizeImages(feeds[i].Items)
		byName[feeds[i].Name] = feeds[i].Items
		run.ListingsFound += len(feeds[i].Items)
	}

	var (
		doc     any
		order   []string
		grouped map[string][]models.Listing
	)
	switch o.cfg.Output.Mode {
	case config.OutputModeRaw:
		doc = feedDocument(feeds)
		grouped = byName
		for _, f := range feeds {
			order = append(order, f.Name)
		}
		result.Written = run.ListingsFound
	default:
		buckets := services.Classify(services.FeedsFromMap(byName))
		doc = buckets
		grouped = buckets.ByName()
		order = services.BucketNames
		result.Written = buckets.Total()
		o.log(run, models.LogLevelInfo, fmt.Sprintf("Classified: %d available rentals, %d leased, %d for sale, %d sold",
			len(buckets.AvailableRentals), len(buckets.LeasedUnits), len(buckets.ForSaleHouses), len(buckets.SoldHouses)), "")
	}
	run.ListingsWritten = result.Written

	data, err := o.writer.Write(doc)
	if err != nil {
		return err
	}
	o.log(run, models.LogLevelInfo, fmt.Sprintf("Wrote %d listings to %s", result.Written, o.writer.Path()), "")

	if o.cfg.Output.TimestampLog != "" {
		if err := storage.AppendTimestamp(o.cfg.Output.TimestampLog, time.Now()); err != nil {
			o.log(run, models.LogLevelWarn, fmt.Sprintf("Could not append timestamp: %v", err), "")
		}
	}

	if o.uploader != nil {
		if err := o.publish(ctx, run, data); err != nil {
			return err
		}
	}

	if o.archive != nil {
		rows, err := storage.ArchiveRows(order, grouped)
		if err == nil {
			err = o.archive.Archive(ctx, run.UUID, rows)
		}
		if err != nil {
			o.log(run, models.LogLevelWarn, fmt.Sprintf("Archive failed: %v", err), "")
		} else {
			o.log(run, models.LogLevelInfo, fmt.Sprintf("Archived %d listings", len(rows)), "")
		}
	}

	return nil
}

// fetchFeeds fetches all feeds concurrently. Pages within a feed stay
// sequential. The first required-feed error cancels the others.
func (o *Orchestrator) fetchFeeds(ctx context.Context) ([]models.Feed, error) {
	feeds := make([]models.Feed, len(o.cfg.Feeds))
	g, gctx := errgroup.WithContext(ctx)

	for i, fc := range o.cfg.Feeds {
		feeds[i] = models.Feed{Name: fc.Name, RT: fc.RT, Optional: fc.Optional, Items: []models.Listing{}}

		g.Go(func() error {
			if fc.Optional {
				items, failed := FetchOptional(gctx, o.fetcher, fc.RT)
				feeds[i].Items = items
				feeds[i].Failed = failed
				return nil
			}

			items, err := o.fetcher.FetchAll(gctx, fc.RT)
			if err != nil {
				feeds[i].Failed = true
				return fmt.Errorf("feed %s: %w", fc.Name, err)
			}
			feeds[i].Items = items
			return nil
		})
	}

	err := g.Wait()
	return feeds, err
}

// feedDocument is the raw output: one array per feed, keyed by feed name in
// configured order rather than the sorted order a map would give.
type feedDocument []models.Feed

func (d feedDocument) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		items, err := json.Marshal(f.Items)
		if err != nil {
			return nil, fmt.Errorf("encode feed %s: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(items)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *Orchestrator) publish(ctx context.Context, run *models.FetchRun, data []byte) error {
	keys := []string{o.cfg.S3.Key, fmt.Sprintf("runs/%s.json", run.UUID)}
	for _, key := range keys {
		if err := o.uploader.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}
	o.log(run, models.LogLevelInfo, fmt.Sprintf("Published %s to bucket %s", o.cfg.S3.Key, o.cfg.S3.Bucket), "")
	return nil
}

func (o *Orchestrator) reportFeeds(run *models.FetchRun, feeds []models.Feed) {
	counts := make([]models.FeedCount, 0, len(feeds))
	for _, f := range feeds {
		slog.Info("feed", "name", f.Name, "rt", f.RT, "count", len(f.Items), "optional", f.Optional, "failed", f.Failed)
		counts = append(counts, models.FeedCount{
			RunID:    run.ID,
			Feed:     f.Name,
			RT:       f.RT,
			Count:    len(f.Items),
			Optional: f.Optional,
			Failed:   f.Failed,
		})
		if f.Failed && f.Optional {
			o.record(run, models.LogLevelWarn, fmt.Sprintf("RT %s not available", f.RT), f.Name)
		}
	}

	if o.store != nil && run.ID != 0 {
		if err := o.store.SaveFeedCounts(run.ID, counts); err != nil {
			slog.Warn("could not record feed counts", "error", err)
		}
	}
}

func (o *Orchestrator) finish(run *models.FetchRun, err error) {
	now := time.Now()
	run.FinishedAt = &now
	run.Status = models.RunStatusCompleted
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		o.log(run, models.LogLevelError, fmt.Sprintf("Fetch failed: %v", err), "")
	} else {
		o.log(run, models.LogLevelInfo, fmt.Sprintf("Completed in %s", now.Sub(run.StartedAt).Round(time.Millisecond)), "")
	}

	if o.store != nil && run.ID != 0 {
		if err := o.store.UpdateRun(run); err != nil {
			slog.Warn("could not update run", "error", err)
		}
	}
}

func (o *Orchestrator) log(run *models.FetchRun, level models.LogLevel, message, feed string) {
	switch level {
	case models.LogLevelError:
		slog.Error(message, "run", run.UUID.String())
	case models.LogLevelWarn:
		slog.Warn(message, "run", run.UUID.String())
	default:
		slog.Info(message, "run", run.UUID.String())
	}
	o.record(run, level, message, feed)
}

// record stores a log line without echoing it to slog.
func (o *Orchestrator) record(run *models.FetchRun, level models.LogLevel, message, feed string) {
	if o.store == nil || run.ID == 0 {
		return
	}
	if err := o.store.Log(&run.ID, level, message, feed); err != nil {
		slog.Debug("could not store log line", "error", err)
	}
}
