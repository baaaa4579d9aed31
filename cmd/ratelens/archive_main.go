package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/ratelens/internal/reliability"
)

func archiveCmd() *cobra.Command {
	var retentionDays int

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Upload current artifacts offsite and rotate old archives",
		RunE: withApp(func(ctx context.Context, a *app) error {
			svc := newArchiveService(ctx, a)
			if svc == nil {
				return fmt.Errorf("archive uploads are not configured, set ARCHIVE_BUCKET")
			}
			if err := svc.CreateAndUploadArchive(ctx, ""); err != nil {
				return err
			}
			return svc.RotateOldArchives(ctx, retentionDays)
		}),
	}

	cmd.Flags().IntVar(&retentionDays, "retention-days", 30, "delete archives older than this, 0 keeps everything")
	return cmd
}

// newArchiveService wires the offsite archive uploader, or nil when no
// bucket is configured.
func newArchiveService(ctx context.Context, a *app) *reliability.ArchiveService {
	if !a.cfg.Archive.Enabled() {
		return nil
	}

	client, err := reliability.NewS3Client(ctx, a.cfg.Archive, a.log)
	if err != nil {
		a.log.Warn().Err(err).Msg("Archive uploads disabled")
		return nil
	}
	return reliability.NewArchiveService(client, a.cfg.ReportsDir, a.cfg.DataDir, a.log)
}
