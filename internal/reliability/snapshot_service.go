// Package reliability writes dataset snapshots and ships them to object storage.
package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/cornerstone/internal/domain"
	"github.com/aristath/cornerstone/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	snapshotPrefix    = "cornerstone-snapshot-"
	snapshotSuffix    = ".tar.gz"
	snapshotTimestamp = "2006-01-02-150405"

	datasetFile  = "dataset.json"
	metadataFile = "snapshot-metadata.json"

	// FormatVersion is bumped when the archive layout changes
	FormatVersion = "1"

	// minSnapshotsToKeep survive rotation regardless of age
	minSnapshotsToKeep = 3
)

// ErrNoSnapshot is returned by LoadLatest when no archive exists locally or remotely
var ErrNoSnapshot = errors.New("no snapshot available")

// RecordSource supplies the dataset to snapshot
type RecordSource interface {
	Records() []domain.PropertyRecord
	LoadedAt() time.Time
}

// SnapshotMetadata is stored next to the dataset in every archive
type SnapshotMetadata struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	LoadedAt  time.Time `json:"loaded_at"`
	Version   string    `json:"version"`
	Records   int       `json:"records"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
}

// SnapshotInfo describes a created or stored snapshot
type SnapshotInfo struct {
	ID        string    `json:"id,omitempty"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	Records   int       `json:"records,omitempty"`
	Uploaded  bool      `json:"uploaded"`
}

// SnapshotService archives the dataset
type SnapshotService struct {
	records RecordSource
	store   ObjectStore // nil keeps archives local only
	dir     string
	events  *events.Manager
	now     func() time.Time
	log     zerolog.Logger
}

// NewSnapshotService creates a snapshot service writing archives to dir.
// store and em may be nil.
func NewSnapshotService(records RecordSource, store ObjectStore, dir string, em *events.Manager, log zerolog.Logger) *SnapshotService {
	return &SnapshotService{
		records: records,
		store:   store,
		dir:     dir,
		events:  em,
		now:     time.Now,
		log:     log.With().Str("service", "snapshot").Logger(),
	}
}

// Create writes a tar.gz of the dataset plus metadata and uploads it when a
// store is configured. The local archive is kept either way.
func (s *SnapshotService) Create(ctx context.Context) (*SnapshotInfo, error) {
	startTime := s.now()
	s.log.Info().Msg("Starting snapshot")

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	records := s.records.Records()
	datasetJSON, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dataset: %w", err)
	}

	metadata := SnapshotMetadata{
		ID:        uuid.New().String(),
		CreatedAt: startTime.UTC(),
		LoadedAt:  s.records.LoadedAt().UTC(),
		Version:   FormatVersion,
		Records:   len(records),
		SizeBytes: int64(len(datasetJSON)),
		Checksum:  checksum(datasetJSON),
	}
	metadataJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	filename := snapshotPrefix + startTime.UTC().Format(snapshotTimestamp) + snapshotSuffix
	archivePath := filepath.Join(s.dir, filename)

	if err := writeArchive(archivePath, map[string][]byte{
		datasetFile:  datasetJSON,
		metadataFile: metadataJSON,
	}, startTime); err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	info := &SnapshotInfo{
		ID:        metadata.ID,
		Filename:  filename,
		Timestamp: metadata.CreatedAt,
		SizeBytes: archiveInfo.Size(),
		Records:   len(records),
	}

	if s.store != nil {
		if err := s.upload(ctx, archivePath, filename, archiveInfo.Size()); err != nil {
			s.events.EmitError("reliability", err, map[string]interface{}{"snapshot": filename})
			return nil, err
		}
		info.Uploaded = true
	}

	s.events.EmitTyped("reliability", &events.SnapshotCreatedData{
		ID:        info.ID,
		Filename:  info.Filename,
		SizeBytes: info.SizeBytes,
		Records:   info.Records,
		Uploaded:  info.Uploaded,
	})

	s.log.Info().
		Dur("duration_ms", s.now().Sub(startTime)).
		Str("archive", filename).
		Int("records", len(records)).
		Bool("uploaded", info.Uploaded).
		Msg("Snapshot completed")

	return info, nil
}

func (s *SnapshotService) upload(ctx context.Context, path, key string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	if err := s.store.Upload(ctx, key, f, size); err != nil {
		return fmt.Errorf("failed to upload snapshot: %w", err)
	}
	return nil
}

// ListSnapshots lists uploaded snapshots, newest first
func (s *SnapshotService) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	if s.store == nil {
		return nil, errors.New("snapshot storage not configured")
	}

	objects, err := s.store.List(ctx, snapshotPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	snapshots := make([]SnapshotInfo, 0, len(objects))
	for _, obj := range objects {
		ts, ok := parseSnapshotName(obj.Key)
		if !ok {
			s.log.Warn().Str("key", obj.Key).Msg("Skipping object with unexpected name")
			continue
		}
		snapshots = append(snapshots, SnapshotInfo{
			Filename:  obj.Key,
			Timestamp: ts,
			SizeBytes: obj.SizeBytes,
			Uploaded:  true,
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Timestamp.After(snapshots[j].Timestamp)
	})
	return snapshots, nil
}

// LoadLatest reads the newest snapshot, preferring archives in the local
// directory and falling back to the object store. Unreadable archives are
// skipped.
func (s *SnapshotService) LoadLatest(ctx context.Context) ([]domain.PropertyRecord, *SnapshotMetadata, error) {
	for _, name := range s.localSnapshots() {
		records, metadata, err := s.readLocal(filepath.Join(s.dir, name))
		if err != nil {
			s.log.Warn().Err(err).Str("archive", name).Msg("Skipping unreadable local snapshot")
			continue
		}
		s.log.Info().Str("archive", name).Int("records", len(records)).Msg("Loaded local snapshot")
		return records, metadata, nil
	}

	if s.store == nil {
		return nil, nil, ErrNoSnapshot
	}

	remote, err := s.ListSnapshots(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, snap := range remote {
		records, metadata, err := s.readRemote(ctx, snap.Filename)
		if err != nil {
			s.log.Warn().Err(err).Str("archive", snap.Filename).Msg("Skipping unreadable remote snapshot")
			continue
		}
		s.log.Info().Str("archive", snap.Filename).Int("records", len(records)).Msg("Loaded remote snapshot")
		return records, metadata, nil
	}
	return nil, nil, ErrNoSnapshot
}

// localSnapshots returns archive names in the snapshot directory, newest first
func (s *SnapshotService) localSnapshots() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}

	type named struct {
		name string
		ts   time.Time
	}
	var found []named
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ts, ok := parseSnapshotName(e.Name()); ok {
			found = append(found, named{e.Name(), ts})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ts.After(found[j].ts) })

	names := make([]string, len(found))
	for i, f := range found {
		names[i] = f.name
	}
	return names
}

func (s *SnapshotService) readLocal(path string) ([]domain.PropertyRecord, *SnapshotMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()
	return ReadSnapshot(f)
}

func (s *SnapshotService) readRemote(ctx context.Context, key string) ([]domain.PropertyRecord, *SnapshotMetadata, error) {
	body, err := s.store.Download(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	defer body.Close()
	return ReadSnapshot(body)
}

// RotateOldSnapshots deletes uploaded snapshots older than retentionDays,
// always keeping the newest three. retentionDays <= 0 keeps everything.
// Returns the number deleted.
func (s *SnapshotService) RotateOldSnapshots(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	snapshots, err := s.ListSnapshots(ctx)
	if err != nil {
		return 0, err
	}
	if len(snapshots) <= minSnapshotsToKeep {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, snap := range snapshots[minSnapshotsToKeep:] {
		if !snap.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, snap.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", snap.Filename).Msg("Failed to delete old snapshot")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(snapshots)-deleted).
		Msg("Snapshot rotation completed")
	return deleted, nil
}

// ReadSnapshot extracts the dataset and metadata from an archive and
// verifies the dataset checksum.
func ReadSnapshot(r io.Reader) ([]domain.PropertyRecord, *SnapshotMetadata, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	files := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read archive: %w", err)
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		files[header.Name] = buf.Bytes()
	}

	metadataJSON, ok := files[metadataFile]
	if !ok {
		return nil, nil, fmt.Errorf("archive has no %s", metadataFile)
	}
	datasetJSON, ok := files[datasetFile]
	if !ok {
		return nil, nil, fmt.Errorf("archive has no %s", datasetFile)
	}

	var metadata SnapshotMetadata
	if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
		return nil, nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if sum := checksum(datasetJSON); sum != metadata.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: archive says %s, dataset is %s", metadata.Checksum, sum)
	}

	var records []domain.PropertyRecord
	if err := json.Unmarshal(datasetJSON, &records); err != nil {
		return nil, nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	return records, &metadata, nil
}

func parseSnapshotName(key string) (time.Time, bool) {
	if !strings.HasPrefix(key, snapshotPrefix) || !strings.HasSuffix(key, snapshotSuffix) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(key, snapshotPrefix), snapshotSuffix)
	ts, err := time.Parse(snapshotTimestamp, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// writeArchive writes files into a tar.gz at path, in name order
func writeArchive(path string, files map[string][]byte, modTime time.Time) error {
	archiveFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		data := files[name]
		header := &tar.Header{
			Name:    name,
			Size:    int64(len(data)),
			Mode:    0644,
			ModTime: modTime,
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
		if _, err := tarWriter.Write(data); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	if err := gzipWriter.Close(); err != nil {
		return err
	}
	return archiveFile.Close()
}

func checksum(data []byte) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256(data))
}
