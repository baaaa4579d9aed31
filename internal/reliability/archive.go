package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

const archivePrefix = "ratelens-archive-"

// ObjectStore is the slice of S3 operations the archive service uses.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// ArchiveService bundles run artifacts into tar.gz archives and manages
// their offsite copies.
type ArchiveService struct {
	store      ObjectStore
	reportsDir string
	dataDir    string
	log        zerolog.Logger
}

// ArchiveMetadata describes the contents of one archive.
type ArchiveMetadata struct {
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id,omitempty"`
	Files     []FileMetadata `json:"files"`
}

// FileMetadata describes a single archived file.
type FileMetadata struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// ArchiveInfo describes an archive stored offsite.
type ArchiveInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// NewArchiveService creates an archive service over the given store.
func NewArchiveService(store ObjectStore, reportsDir, dataDir string, log zerolog.Logger) *ArchiveService {
	return &ArchiveService{
		store:      store,
		reportsDir: reportsDir,
		dataDir:    dataDir,
		log:        log.With().Str("component", "archive_service").Logger(),
	}
}

// CreateAndUploadArchive bundles the reports directory and the processed
// dataset into a tar.gz archive and uploads it.
func (s *ArchiveService) CreateAndUploadArchive(ctx context.Context, runID string) error {
	s.log.Info().Str("run_id", runID).Msg("Starting artifact archive")
	startTime := time.Now()

	stagingDir, err := os.MkdirTemp("", "ratelens-archive-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	files, err := s.collectArtifacts()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no artifacts to archive under %s", s.reportsDir)
	}

	metadata := ArchiveMetadata{
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Files:     make([]FileMetadata, 0, len(files)),
	}
	for _, f := range files {
		info, err := os.Stat(f.absPath)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", f.absPath, err)
		}
		checksum, err := calculateChecksum(f.absPath)
		if err != nil {
			return fmt.Errorf("failed to checksum %s: %w", f.absPath, err)
		}
		metadata.Files = append(metadata.Files, FileMetadata{
			Path:      f.archivePath,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	metadataPath := filepath.Join(stagingDir, "archive-metadata.json")
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	files = append(files, artifactFile{absPath: metadataPath, archivePath: "archive-metadata.json"})

	timestamp := time.Now().Format("2006-01-02-150405")
	archiveName := archivePrefix + timestamp + ".tar.gz"
	archivePath := filepath.Join(stagingDir, archiveName)
	if err := createArchive(archivePath, files); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.store.Upload(ctx, archiveName, archiveFile); err != nil {
		return err
	}

	info, _ := os.Stat(archivePath)
	s.log.Info().
		Dur("elapsed", time.Since(startTime)).
		Str("archive", archiveName).
		Int("files", len(files)).
		Int64("size_bytes", info.Size()).
		Msg("Artifact archive uploaded")
	return nil
}

// ListArchives lists stored archives, newest first.
func (s *ArchiveService) ListArchives(ctx context.Context) ([]ArchiveInfo, error) {
	objects, err := s.store.List(ctx, archivePrefix)
	if err != nil {
		return nil, err
	}

	archives := make([]ArchiveInfo, 0, len(objects))
	now := time.Now()
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		filename := *obj.Key
		if !strings.HasPrefix(filename, archivePrefix) || !strings.HasSuffix(filename, ".tar.gz") {
			continue
		}

		timestampStr := strings.TrimSuffix(strings.TrimPrefix(filename, archivePrefix), ".tar.gz")
		timestamp, err := time.Parse("2006-01-02-150405", timestampStr)
		if err != nil {
			s.log.Warn().Str("filename", filename).Msg("Skipping archive with unparseable timestamp")
			continue
		}

		var sizeBytes int64
		if obj.Size != nil {
			sizeBytes = *obj.Size
		}
		archives = append(archives, ArchiveInfo{
			Filename:  filename,
			Timestamp: timestamp,
			SizeBytes: sizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].Timestamp.After(archives[j].Timestamp)
	})
	return archives, nil
}

// RotateOldArchives deletes archives older than retentionDays while
// always keeping the newest three. retentionDays 0 keeps everything.
func (s *ArchiveService) RotateOldArchives(ctx context.Context, retentionDays int) error {
	archives, err := s.ListArchives(ctx)
	if err != nil {
		return err
	}

	const minToKeep = 3
	if len(archives) <= minToKeep || retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for i, archive := range archives {
		if i < minToKeep || !archive.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, archive.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", archive.Filename).Msg("Failed to delete old archive")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(archives)-deleted).
		Msg("Archive rotation completed")
	return nil
}

type artifactFile struct {
	absPath     string
	archivePath string
}

// collectArtifacts gathers the report tree and the processed dataset,
// with archive paths relative to their roots.
func (s *ArchiveService) collectArtifacts() ([]artifactFile, error) {
	var files []artifactFile

	err := filepath.Walk(s.reportsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.reportsDir, path)
		if err != nil {
			return err
		}
		files = append(files, artifactFile{absPath: path, archivePath: filepath.Join("reports", rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk reports directory: %w", err)
	}

	datasetPath := filepath.Join(s.dataDir, "processed", "dataset.csv")
	if _, err := os.Stat(datasetPath); err == nil {
		files = append(files, artifactFile{absPath: datasetPath, archivePath: "processed/dataset.csv"})
	}

	return files, nil
}

func calculateChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata ArchiveMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

func createArchive(archivePath string, files []artifactFile) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, f := range files {
		if err := addFileToArchive(tarWriter, f.absPath, f.archivePath); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", f.archivePath, err)
		}
	}
	return nil
}

func addFileToArchive(tarWriter *tar.Writer, path, nameInArchive string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    filepath.ToSlash(nameInArchive),
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	if _, err := io.Copy(tarWriter, file); err != nil {
		return err
	}
	return nil
}
