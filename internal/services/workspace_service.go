package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"autodash/internal/dashboard"
	"autodash/pkg/dashtypes"
)

// ErrNoWorkspace is returned when no dashboard has been saved yet.
var ErrNoWorkspace = errors.New("no active dashboard; upload a dataset or load the sample first")

// maxRecent caps the cached recent-dashboards list.
const maxRecent = 20

type currentFile struct {
	DatasetID string                 `json:"dataset_id"`
	Dataset   *dashtypes.DatasetInfo `json:"dataset,omitempty"`
}

// WorkspaceService persists dashboards between CLI invocations: one state file
// per dataset, a pointer to the active dataset and a cache of the backend's
// recent-dashboards list.
type WorkspaceService struct {
	dir         string
	now         func() time.Time
	initialized bool
	mu          sync.Mutex
}

// NewWorkspaceService stores files under dir.
func NewWorkspaceService(dir string) *WorkspaceService {
	return &WorkspaceService{dir: dir, now: time.Now}
}

// Name returns the service name "workspace" for registration.
func (w *WorkspaceService) Name() string {
	return "workspace"
}

// Initialize creates the workspace directory.
func (w *WorkspaceService) Initialize() error {
	if w.dir == "" {
		return fmt.Errorf("workspace directory is not configured")
	}
	if err := os.MkdirAll(filepath.Join(w.dir, "dashboards"), 0o755); err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	w.initialized = true
	return nil
}

// Dir returns the workspace directory.
func (w *WorkspaceService) Dir() string {
	return w.dir
}

func (w *WorkspaceService) statePath(datasetID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, datasetID)
	return filepath.Join(w.dir, "dashboards", safe+".json")
}

// SetCurrent marks datasetID as the active dataset.
func (w *WorkspaceService) SetCurrent(info dashtypes.DatasetInfo) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, err := sonic.ConfigStd.MarshalIndent(currentFile{DatasetID: info.DatasetID, Dataset: &info}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode workspace pointer: %w", err)
	}
	return writeFileAtomic(filepath.Join(w.dir, "current.json"), data)
}

// Current returns the active dataset.
func (w *WorkspaceService) Current() (dashtypes.DatasetInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, err := os.ReadFile(filepath.Join(w.dir, "current.json"))
	if errors.Is(err, os.ErrNotExist) {
		return dashtypes.DatasetInfo{}, ErrNoWorkspace
	}
	if err != nil {
		return dashtypes.DatasetInfo{}, fmt.Errorf("failed to read workspace pointer: %w", err)
	}
	var cur currentFile
	if err := sonic.Unmarshal(data, &cur); err != nil {
		return dashtypes.DatasetInfo{}, fmt.Errorf("failed to parse workspace pointer: %w", err)
	}
	if cur.DatasetID == "" {
		return dashtypes.DatasetInfo{}, ErrNoWorkspace
	}
	if cur.Dataset == nil {
		return dashtypes.DatasetInfo{DatasetID: cur.DatasetID}, nil
	}
	return *cur.Dataset, nil
}

// Save writes the dashboard state and records it in the recent list.
func (w *WorkspaceService) Save(st dashboard.State) error {
	if st.DatasetID == "" {
		return fmt.Errorf("cannot save a dashboard without a dataset")
	}
	data, err := sonic.ConfigStd.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dashboard: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := writeFileAtomic(w.statePath(st.DatasetID), data); err != nil {
		return err
	}

	recent, _ := w.readRecentLocked()
	meta := dashtypes.DashboardMetadata{
		ID:         st.DatasetID,
		Title:      st.Title,
		DatasetID:  st.DatasetID,
		ChartCount: len(st.Charts),
		Timestamp:  w.now().UTC(),
	}
	return w.writeRecentLocked(upsertRecent(recent, meta))
}

// Load reads the saved state of a dataset's dashboard. A dataset with no saved
// state yields an empty State for it.
func (w *WorkspaceService) Load(datasetID string) (dashboard.State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, err := os.ReadFile(w.statePath(datasetID))
	if errors.Is(err, os.ErrNotExist) {
		return dashboard.State{DatasetID: datasetID}, nil
	}
	if err != nil {
		return dashboard.State{}, fmt.Errorf("failed to read dashboard: %w", err)
	}
	var st dashboard.State
	if err := sonic.Unmarshal(data, &st); err != nil {
		return dashboard.State{}, fmt.Errorf("failed to parse dashboard: %w", err)
	}
	return st, nil
}

// Recent returns the cached recent dashboards, newest first.
func (w *WorkspaceService) Recent() ([]dashtypes.DashboardMetadata, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.readRecentLocked()
}

// CacheRecent merges the backend's list into the local cache.
func (w *WorkspaceService) CacheRecent(list []dashtypes.DashboardMetadata) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	recent, _ := w.readRecentLocked()
	for _, m := range list {
		recent = upsertRecent(recent, m)
	}
	return w.writeRecentLocked(recent)
}

func upsertRecent(list []dashtypes.DashboardMetadata, meta dashtypes.DashboardMetadata) []dashtypes.DashboardMetadata {
	out := make([]dashtypes.DashboardMetadata, 0, len(list)+1)
	out = append(out, meta)
	for _, m := range list {
		if m.ID != meta.ID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > maxRecent {
		out = out[:maxRecent]
	}
	return out
}

func (w *WorkspaceService) readRecentLocked() ([]dashtypes.DashboardMetadata, error) {
	data, err := os.ReadFile(filepath.Join(w.dir, "recent.json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read recent dashboards: %w", err)
	}
	var list []dashtypes.DashboardMetadata
	if err := sonic.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse recent dashboards: %w", err)
	}
	return list, nil
}

func (w *WorkspaceService) writeRecentLocked(list []dashtypes.DashboardMetadata) error {
	data, err := sonic.ConfigStd.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode recent dashboards: %w", err)
	}
	return writeFileAtomic(filepath.Join(w.dir, "recent.json"), data)
}
