package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aristath/ratelens/internal/config"
	"github.com/aristath/ratelens/internal/modules/dataset"
)

// Fetch imports every study series into data/raw and history.db.
// Configured source paths are copied in first; series whose file already
// sits under data/raw are loaded in place.
func (p *Pipeline) Fetch(ctx context.Context) error {
	if err := os.MkdirAll(p.cfg.RawDir(), 0755); err != nil {
		return fmt.Errorf("failed to create raw data directory: %w", err)
	}

	for _, spec := range p.study.Series {
		if err := ctx.Err(); err != nil {
			return err
		}

		rawPath, err := p.stageSourceFile(spec)
		if err != nil {
			return err
		}

		table, err := p.loader.LoadFile(rawPath)
		if err != nil {
			return err
		}
		s, err := table.Series(spec.Name, spec.Column)
		if err != nil {
			return err
		}
		if s.CountDefined() == 0 {
			return &dataset.DataGapError{Series: spec.Name}
		}
		if err := p.seriesRepo.SaveSeries(s); err != nil {
			return err
		}

		p.log.Info().
			Str("series", spec.Name).
			Str("file", rawPath).
			Int("observations", len(s.Obs)).
			Int("defined", s.CountDefined()).
			Msg("Imported series")
	}
	return nil
}

// stageSourceFile resolves the raw file for a series, copying it into
// data/raw when it comes from a configured source path.
func (p *Pipeline) stageSourceFile(spec config.SeriesSpec) (string, error) {
	rawPath := filepath.Join(p.cfg.RawDir(), filepath.Base(spec.File))

	src := spec.File
	if !filepath.IsAbs(src) {
		switch {
		case spec.Kind == config.KindRate && p.cfg.RatesSourcePath != "":
			src = filepath.Join(p.cfg.RatesSourcePath, spec.File)
		case spec.Kind == config.KindEquity && p.cfg.EquitySourcePath != "":
			src = filepath.Join(p.cfg.EquitySourcePath, spec.File)
		default:
			// No source configured: the file must already sit under data/raw.
			return rawPath, nil
		}
	}

	if err := copyFile(src, rawPath); err != nil {
		return "", fmt.Errorf("failed to stage %s for series %s: %w", src, spec.Name, err)
	}
	return rawPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
