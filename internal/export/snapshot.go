package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"

	werrors "github.com/waypointdb/waypoint/internal/errors"
	"github.com/waypointdb/waypoint/internal/kv"
)

// ErrChecksumMismatch is returned by Verify when a downloaded snapshot
// does not hash to its manifest checksum.
var ErrChecksumMismatch = errors.New("snapshot checksum mismatch")

// Manifest describes one uploaded snapshot.
type Manifest struct {
	Table     string `json:"table"`
	Object    string `json:"object"`
	Rows      int    `json:"rows"`
	Checksum  string `json:"checksum"`
	SizeBytes int    `json:"sizeBytes"`
	CreatedAt string `json:"createdAt"`
}

// snapshotLine is one JSON-lines record: a raw key/value pair of the
// table, so a snapshot restores byte-identically regardless of item
// shape.
type snapshotLine struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Snapshotter exports tables from the key/value primitive to object
// storage. It reads below the table store on purpose: a snapshot is a
// byte-level backup of the table's keys (definition included) and never
// contends with the table handle's single-caller contract.
type Snapshotter struct {
	store   kv.Store
	storage ObjectStorage
	prefix  string
}

// NewSnapshotter creates a snapshotter writing objects under prefix.
func NewSnapshotter(store kv.Store, storage ObjectStorage, prefix string) *Snapshotter {
	return &Snapshotter{
		store:   store,
		storage: storage,
		prefix:  prefix,
	}
}

// Export snapshots the named table: its definition key plus every
// "<table>|" item key, as snappy-compressed JSON lines. It uploads the
// snapshot and its manifest and returns the manifest.
func (s *Snapshotter) Export(ctx context.Context, tableName string) (*Manifest, error) {
	if tableName == "" {
		return nil, fmt.Errorf("export: table name is required")
	}

	keys, err := s.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: enumerate keys: %w", err)
	}

	itemPrefix := tableName + "|"
	var tableKeys []string
	for _, key := range keys {
		if key == tableName || strings.HasPrefix(key, itemPrefix) {
			tableKeys = append(tableKeys, key)
		}
	}
	if len(tableKeys) == 0 {
		return nil, fmt.Errorf("export: table %q has no keys", tableName)
	}

	results, err := s.store.MultiGet(ctx, tableKeys)
	if err != nil {
		return nil, fmt.Errorf("export: read table %q: %w", tableName, err)
	}

	var raw bytes.Buffer
	enc := json.NewEncoder(&raw)
	rows := 0
	for _, res := range results {
		if !res.Found {
			continue
		}
		if err := enc.Encode(snapshotLine{Key: res.Key, Value: res.Value}); err != nil {
			return nil, fmt.Errorf("export: encode row: %w", err)
		}
		rows++
	}

	compressed := snappy.Encode(nil, raw.Bytes())
	manifest := &Manifest{
		Table:     tableName,
		Object:    path.Join(s.prefix, fmt.Sprintf("%s-%s.snap", tableName, uuid.NewString())),
		Rows:      rows,
		Checksum:  fmt.Sprintf("%016x", murmur3.Sum64(raw.Bytes())),
		SizeBytes: len(compressed),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.uploadBytes(ctx, compressed, manifest.Object); err != nil {
		return nil, werrors.NewExportError(werrors.CodeUploadFailed, "failed to upload snapshot", err)
	}

	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("export: encode manifest: %w", err)
	}
	if err := s.uploadBytes(ctx, manifestBytes, ManifestObject(manifest.Object)); err != nil {
		return nil, werrors.NewExportError(werrors.CodeUploadFailed, "failed to upload manifest", err)
	}

	return manifest, nil
}

// Verify downloads a snapshot and checks it against its manifest: row
// count and content checksum must match.
func (s *Snapshotter) Verify(ctx context.Context, manifestObject string) (*Manifest, error) {
	manifest, err := s.fetchManifest(ctx, manifestObject)
	if err != nil {
		return nil, err
	}

	lines, raw, err := s.fetchSnapshot(ctx, manifest.Object)
	if err != nil {
		return nil, err
	}

	if got := fmt.Sprintf("%016x", murmur3.Sum64(raw)); got != manifest.Checksum {
		return manifest, fmt.Errorf("%w: got %s, manifest says %s", ErrChecksumMismatch, got, manifest.Checksum)
	}
	if len(lines) != manifest.Rows {
		return manifest, fmt.Errorf("%w: got %d rows, manifest says %d", ErrChecksumMismatch, len(lines), manifest.Rows)
	}
	return manifest, nil
}

// Restore verifies a snapshot and writes its key/value pairs back into
// the primitive in one batch.
func (s *Snapshotter) Restore(ctx context.Context, manifestObject string) (*Manifest, error) {
	manifest, err := s.Verify(ctx, manifestObject)
	if err != nil {
		return manifest, err
	}

	lines, _, err := s.fetchSnapshot(ctx, manifest.Object)
	if err != nil {
		return manifest, err
	}

	pairs := make([]kv.Pair, 0, len(lines))
	for _, line := range lines {
		pairs = append(pairs, kv.Pair{Key: line.Key, Value: line.Value})
	}
	if err := s.store.MultiSet(ctx, pairs); err != nil {
		return manifest, fmt.Errorf("export: restore table %q: %w", manifest.Table, err)
	}
	return manifest, nil
}

// ManifestObject returns the manifest path for a snapshot object.
func ManifestObject(snapshotObject string) string {
	return snapshotObject + ".manifest.json"
}

func (s *Snapshotter) fetchManifest(ctx context.Context, manifestObject string) (*Manifest, error) {
	data, err := s.downloadBytes(ctx, manifestObject)
	if err != nil {
		return nil, fmt.Errorf("export: download manifest: %w", err)
	}
	manifest := &Manifest{}
	if err := json.Unmarshal(data, manifest); err != nil {
		return nil, fmt.Errorf("export: decode manifest: %w", err)
	}
	return manifest, nil
}

func (s *Snapshotter) fetchSnapshot(ctx context.Context, object string) ([]snapshotLine, []byte, error) {
	compressed, err := s.downloadBytes(ctx, object)
	if err != nil {
		return nil, nil, fmt.Errorf("export: download snapshot: %w", err)
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, nil, fmt.Errorf("export: decompress snapshot: %w", err)
	}

	var lines []snapshotLine
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		var line snapshotLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, nil, fmt.Errorf("export: decode snapshot row: %w", err)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("export: scan snapshot: %w", err)
	}
	return lines, raw, nil
}

// uploadBytes stages data in a temp file and hands it to the storage
// backend, which works in file paths.
func (s *Snapshotter) uploadBytes(ctx context.Context, data []byte, objectPath string) error {
	tmp, err := os.CreateTemp("", "waypoint-export-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return s.storage.Upload(ctx, tmp.Name(), objectPath)
}

func (s *Snapshotter) downloadBytes(ctx context.Context, objectPath string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "waypoint-export-*")
	if err != nil {
		return nil, err
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	if err := s.storage.Download(ctx, objectPath, tmpName); err != nil {
		return nil, err
	}
	return os.ReadFile(tmpName)
}
