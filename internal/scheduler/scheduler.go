// Package scheduler runs the periodic storage sweep that reclaims
// orphaned content-addressed blobs: files nothing in the metadata store
// references any longer.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/scottschroeder/lucille-go/internal/hashfs"
	"github.com/scottschroeder/lucille-go/internal/repository"
	"github.com/scottschroeder/lucille-go/internal/verify"
)

// DefaultSpec runs the sweep once an hour.
const DefaultSpec = "@hourly"

// Scheduler owns a cron schedule for the orphan-storage sweep.
type Scheduler struct {
	storage  *repository.StorageRepository
	fs       *hashfs.HashFS
	verifier *verify.Verifier
	cron     *cron.Cron
	spec     string
	log      zerolog.Logger
}

func New(storage *repository.StorageRepository, fs *hashfs.HashFS, verifier *verify.Verifier, log zerolog.Logger, spec string) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Scheduler{
		storage:  storage,
		fs:       fs,
		verifier: verifier,
		cron:     cron.New(),
		spec:     spec,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the sweep against spec and starts the cron goroutine.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("spec", s.spec).Msg("orphan sweep scheduler started")
	return nil
}

// Stop cancels the schedule and blocks until any in-flight sweep returns.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("orphan sweep scheduler stopped")
}

// sweep deletes every storage row ListOrphans reports, along with its
// hashfs blob if the bytes are still present on disk.
func (s *Scheduler) sweep() {
	orphans, err := s.storage.ListOrphans()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list orphaned storage rows")
		return
	}
	if len(orphans) == 0 {
		return
	}

	var reclaimed, failed int
	for _, row := range orphans {
		if _, err := s.verifier.CheckLocalFile(context.Background(), row.Hash, verify.CheckExists); err != nil {
			s.log.Warn().Str("path", row.Path).Err(err).Msg("orphan check failed, skipping")
			failed++
			continue
		}
		if err := s.fs.Remove(row.Hash); err != nil {
			s.log.Warn().Str("hash", row.Hash.String()).Err(err).Msg("failed to remove orphaned blob")
		}
		if err := s.storage.Delete(row.ID); err != nil {
			s.log.Error().Int64("storage_id", row.ID).Err(err).Msg("failed to delete orphaned storage row")
			failed++
			continue
		}
		reclaimed++
	}
	s.log.Info().Int("reclaimed", reclaimed).Int("failed", failed).Msg("orphan sweep complete")
}
