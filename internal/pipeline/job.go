package pipeline

import (
	"context"

	"github.com/aristath/ratelens/internal/reliability"
	"github.com/rs/zerolog"
)

// RefreshJob re-runs the whole pipeline on a schedule and, when
// configured, ships the fresh artifacts offsite.
type RefreshJob struct {
	pipeline *Pipeline
	archive  *reliability.ArchiveService // nil disables uploads
	log      zerolog.Logger
}

// NewRefreshJob creates the scheduled refresh job.
func NewRefreshJob(p *Pipeline, archive *reliability.ArchiveService, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		pipeline: p,
		archive:  archive,
		log:      log.With().Str("component", "refresh_job").Logger(),
	}
}

// Name implements scheduler.Job.
func (j *RefreshJob) Name() string { return "study_refresh" }

// Run implements scheduler.Job.
func (j *RefreshJob) Run(ctx context.Context) error {
	if _, err := j.pipeline.Run(ctx); err != nil {
		return err
	}
	if j.archive != nil {
		if err := j.archive.CreateAndUploadArchive(ctx, ""); err != nil {
			// The run itself succeeded; a failed upload should not mark it failed.
			j.log.Error().Err(err).Msg("Artifact upload failed")
		}
	}
	return nil
}
