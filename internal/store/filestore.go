package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/episode"
)

// FileStore persists episodes as date-sharded JSON documents:
//
//	<root>/2026-08-31/episode-1a2b3c4d.json
//	<root>/2026-08-31/episode-1a2b3c4d.md
//
// The JSON document is the record of truth; the markdown sidecar is a
// human-readable rendering refreshed on every write. Writes go through
// a temp file plus rename so a record on disk is always a complete,
// independently valid document and interrupted runs resume cleanly.
type FileStore struct {
	root   string
	logger *zap.Logger
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
	}
	return &FileStore{root: dir, logger: logger}, nil
}

// Save persists a new episode at version 1.
func (s *FileStore) Save(ctx context.Context, ep *episode.Episode) error {
	if err := ep.Validate(); err != nil {
		return fmt.Errorf("validating episode: %w", err)
	}
	ep.Version = 1

	dir := filepath.Join(s.root, ep.TimestampStart.UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating shard directory: %w", err)
	}

	if err := s.writeRecord(filepath.Join(dir, recordName(ep.ID)), ep); err != nil {
		return err
	}

	s.logger.Debug("episode saved",
		zap.String("id", ep.ShortID()),
		zap.String("project", ep.Project))
	return nil
}

// List walks every shard directory and decodes every JSON record.
// Records that fail to decode are reported, not dropped silently.
// Episodes are returned newest first.
func (s *FileStore) List(ctx context.Context) (*ListResult, error) {
	result := &ListResult{}

	shards, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store directory: %w", err)
	}

	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		shardDir := filepath.Join(s.root, shard.Name())
		files, err := os.ReadDir(shardDir)
		if err != nil {
			result.Errors = append(result.Errors, RecordError{Ref: shardDir, Err: err})
			continue
		}

		for _, file := range files {
			if filepath.Ext(file.Name()) != ".json" {
				continue
			}
			path := filepath.Join(shardDir, file.Name())
			ep, err := readRecord(path)
			if err != nil {
				s.logger.Warn("skipping unreadable episode record",
					zap.String("path", path), zap.Error(err))
				result.Errors = append(result.Errors, RecordError{Ref: path, Err: err})
				continue
			}
			result.Episodes = append(result.Episodes, ep)
		}
	}

	sort.Slice(result.Episodes, func(i, j int) bool {
		return result.Episodes[i].TimestampStart.After(result.Episodes[j].TimestampStart)
	})
	return result, nil
}

// Load finds an episode by full ID or unique short prefix.
func (s *FileStore) Load(ctx context.Context, id string) (*episode.Episode, error) {
	path, err := s.findRecord(id)
	if err != nil {
		return nil, err
	}
	ep, err := readRecord(path)
	if err != nil {
		return nil, fmt.Errorf("reading episode %s: %w", id, err)
	}
	return ep, nil
}

// Update performs a compare-and-swap on the record version.
func (s *FileStore) Update(ctx context.Context, ep *episode.Episode) error {
	if err := ep.Validate(); err != nil {
		return fmt.Errorf("validating episode: %w", err)
	}

	path, err := s.findRecord(ep.ID)
	if err != nil {
		return err
	}
	current, err := readRecord(path)
	if err != nil {
		return fmt.Errorf("reading episode %s: %w", ep.ID, err)
	}
	if current.Version != ep.Version {
		return fmt.Errorf("%w: have %d, stored %d", ErrVersionConflict, ep.Version, current.Version)
	}

	ep.Version++
	if err := s.writeRecord(path, ep); err != nil {
		ep.Version--
		return err
	}
	return nil
}

// Delete removes the JSON record and its markdown sidecar.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	path, err := s.findRecord(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting episode %s: %w", id, err)
	}
	// Sidecar is best effort.
	_ = os.Remove(strings.TrimSuffix(path, ".json") + ".md")

	s.logger.Debug("episode deleted", zap.String("id", id))
	return nil
}

// findRecord locates the JSON path for an ID or unique ID prefix.
func (s *FileStore) findRecord(id string) (string, error) {
	if len(id) < 8 {
		return "", fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	prefix := "episode-" + id[:8]

	shards, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("reading store directory: %w", err)
	}

	var matches []string
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		path := filepath.Join(s.root, shard.Name(), prefix+".json")
		if _, err := os.Stat(path); err == nil {
			matches = append(matches, path)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
}

// writeRecord writes the JSON record atomically and refreshes the
// markdown sidecar.
func (s *FileStore) writeRecord(path string, ep *episode.Episode) error {
	data, err := json.MarshalIndent(ep, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding episode %s: %w", ep.ID, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".episode-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp record: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp record: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing record %s: %w", path, err)
	}

	mdPath := strings.TrimSuffix(path, ".json") + ".md"
	if err := os.WriteFile(mdPath, []byte(ep.Markdown()), 0o600); err != nil {
		// The JSON record is already durable; a failed sidecar write
		// only loses the human-readable copy.
		s.logger.Warn("writing markdown sidecar failed",
			zap.String("path", mdPath), zap.Error(err))
	}
	return nil
}

func recordName(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return "episode-" + id + ".json"
}

func readRecord(path string) (*episode.Episode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ep episode.Episode
	if err := json.Unmarshal(data, &ep); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return &ep, nil
}
