package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/studymaterials/backend/internal/storage"
	"go.uber.org/zap"
)

// DefaultGracePeriod protects objects uploaded moments ago whose record is not inserted yet
const DefaultGracePeriod = time.Hour

// ErrUnmappedReference is returned when a stored file URL does not belong to the object store.
// The sweep aborts without removing anything, since the referenced object cannot be told apart from an orphan.
var ErrUnmappedReference = errors.New("file url does not match the object store")

// ObjectStore lists and removes stored binaries
type ObjectStore interface {
	// List returns every object under the prefix
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	// Remove deletes the object stored under path
	Remove(ctx context.Context, path string) error
	// PathFromURL maps a public URL back to its object path
	PathFromURL(publicURL string) (string, bool)
}

// ReferenceSource returns the file URLs of every material whose binary lives in the object store
type ReferenceSource interface {
	ListFileURLs(ctx context.Context) ([]string, error)
}

// OrphanSweeper removes stored binaries that no material record references.
// Deleting a material only deletes its record, so the sweeper reclaims the space later.
type OrphanSweeper struct {
	store       ObjectStore
	refs        ReferenceSource
	schedule    cron.Schedule
	gracePeriod time.Duration
	logger      *zap.Logger
	now         func() time.Time
	stopChan    chan struct{}
	done        chan struct{}
}

// NewOrphanSweeper creates a sweeper running on a standard five field cron expression
func NewOrphanSweeper(store ObjectStore, refs ReferenceSource, cronExpr string, logger *zap.Logger) (*OrphanSweeper, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	return &OrphanSweeper{
		store:       store,
		refs:        refs,
		schedule:    schedule,
		gracePeriod: DefaultGracePeriod,
		logger:      logger,
		now:         time.Now,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

// Start starts the sweeper loop
func (s *OrphanSweeper) Start() {
	s.logger.Info("Orphan sweeper started")
	go s.run()
}

// Stop stops the sweeper and waits for a running sweep to finish
func (s *OrphanSweeper) Stop() {
	close(s.stopChan)
	<-s.done
	s.logger.Info("Orphan sweeper stopped")
}

func (s *OrphanSweeper) run() {
	defer close(s.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		next := s.schedule.Next(s.now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("Orphan sweep failed", zap.Error(err))
			}
		case <-s.stopChan:
			timer.Stop()
			return
		}
	}
}

// Sweep removes every unreferenced object older than the grace period and returns how many were removed.
// A failed removal is logged and the sweep continues. A referenced URL that the store cannot map
// back to an object path aborts the sweep with ErrUnmappedReference before anything is removed.
func (s *OrphanSweeper) Sweep(ctx context.Context) (int, error) {
	urls, err := s.refs.ListFileURLs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list referenced files: %w", err)
	}

	referenced := make(map[string]struct{}, len(urls))
	var unmapped []string
	for _, url := range urls {
		path, ok := s.store.PathFromURL(url)
		if !ok {
			unmapped = append(unmapped, url)
			continue
		}
		referenced[path] = struct{}{}
	}
	if len(unmapped) > 0 {
		s.logger.Error("Orphan sweep aborted, stored file urls do not match the object store",
			zap.Int("unmapped", len(unmapped)),
			zap.String("example", unmapped[0]),
		)
		return 0, fmt.Errorf("%d of %d referenced files: %w", len(unmapped), len(urls), ErrUnmappedReference)
	}

	objects, err := s.store.List(ctx, storage.MaterialsPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list stored objects: %w", err)
	}

	cutoff := s.now().Add(-s.gracePeriod)
	removed := 0
	for _, obj := range objects {
		if _, ok := referenced[obj.Path]; ok {
			continue
		}
		if obj.LastModified.After(cutoff) {
			continue
		}
		if err := s.store.Remove(ctx, obj.Path); err != nil {
			s.logger.Warn("Failed to remove orphaned object", zap.String("path", obj.Path), zap.Error(err))
			continue
		}
		removed++
		s.logger.Debug("Removed orphaned object", zap.String("path", obj.Path), zap.Int64("size", obj.Size))
	}

	s.logger.Info("Orphan sweep finished",
		zap.Int("objects", len(objects)),
		zap.Int("referenced", len(referenced)),
		zap.Int("removed", removed),
	)
	return removed, nil
}
