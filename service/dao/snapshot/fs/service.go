package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/procmem/service/dao"
	"github.com/viant/procmem/service/dao/criteria"
	"github.com/viant/procmem/space"
)

// Service stores space snapshots as JSON documents under a base URL.
type Service struct {
	basePath string
	fs       afs.Service
	logger   *slog.Logger
	mu       sync.RWMutex
}

// Ensure Service implements dao.Service
var _ dao.Service[string, space.Snapshot] = (*Service)(nil)

// Save persists a snapshot
func (s *Service) Save(ctx context.Context, snapshot *space.Snapshot) error {
	if snapshot == nil {
		return dao.ErrNilEntity
	}
	if snapshot.ID == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	filePath := s.snapshotPath(snapshot.ID)
	if err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save snapshot to file %s: %w", filePath, err)
	}
	return nil
}

// Load retrieves a snapshot by id
func (s *Service) Load(ctx context.Context, id string) (*space.Snapshot, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filePath := s.snapshotPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to check if snapshot exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("snapshot %s: %w", id, dao.ErrNotFound)
	}

	data, err := s.fs.DownloadWithURL(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	snapshot := &space.Snapshot{}
	if err := json.Unmarshal(data, snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot data: %w", err)
	}
	return snapshot, nil
}

// Delete removes a snapshot
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := s.snapshotPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return fmt.Errorf("failed to check if snapshot exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("snapshot %s: %w", id, dao.ErrNotFound)
	}
	if err := s.fs.Delete(ctx, filePath); err != nil {
		return fmt.Errorf("failed to delete snapshot file: %w", err)
	}
	return nil
}

// List returns stored snapshots ordered by time, optionally filtered by a
// "PID" parameter. Unreadable documents are logged and skipped.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*space.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot files: %w", err)
	}

	var snapshots []*space.Snapshot
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			s.logger.Warn("failed to read snapshot file", "url", object.URL(), "error", err)
			continue
		}
		snapshot := &space.Snapshot{}
		if err := json.Unmarshal(data, snapshot); err != nil {
			s.logger.Warn("failed to unmarshal snapshot", "url", object.URL(), "error", err)
			continue
		}
		if !criteria.Match("PID", snapshot.PID, parameters) {
			continue
		}
		snapshots = append(snapshots, snapshot)
	}
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].TakenAt.Before(snapshots[j].TakenAt)
	})
	return snapshots, nil
}

func (s *Service) snapshotPath(id string) string {
	return path.Join(s.basePath, fmt.Sprintf("%s.json", id))
}

// New creates a snapshot store rooted at baseURL, creating the location when
// it does not exist. A nil fs uses afs.New().
func New(fs afs.Service, baseURL string, logger *slog.Logger) (*Service, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if fs == nil {
		fs = afs.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx := context.Background()
	exists, _ := fs.Exists(ctx, baseURL)
	if !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create snapshot location: %w", err)
		}
	}

	return &Service{
		basePath: url.Normalize(baseURL, file.Scheme),
		fs:       fs,
		logger:   logger,
	}, nil
}
