// Package history keeps a local record of rotation runs as one JSON file
// per run.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/systmms/approtate/internal/logging"
	"github.com/systmms/approtate/pkg/rotation"
)

const fileTimeFormat = "20060102-150405.000000000"

// FileStore implements rotation.HistoryStore using the filesystem.
//
// Layout: <baseDir>/runs/<app object id>/<finished at>-<run id>.json
type FileStore struct {
	baseDir string
	keep    int
	logger  *logging.Logger
	mu      sync.RWMutex
}

var _ rotation.HistoryStore = (*FileStore)(nil)

// Option configures a FileStore.
type Option func(*FileStore)

// WithKeep retains only the newest n runs per application. Zero keeps
// everything.
func WithKeep(n int) Option {
	return func(fs *FileStore) { fs.keep = n }
}

// WithLogger sets the logger used for skipped and pruned files.
func WithLogger(l *logging.Logger) Option {
	return func(fs *FileStore) { fs.logger = l }
}

// NewFileStore creates a new file-based history store.
func NewFileStore(baseDir string, opts ...Option) *FileStore {
	fs := &FileStore{baseDir: baseDir, logger: logging.Discard()}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Dir returns the base directory.
func (fs *FileStore) Dir() string {
	return fs.baseDir
}

// DefaultDir returns the default data directory.
func DefaultDir() string {
	if dir := os.Getenv("APPROTATE_DATA_DIR"); dir != "" {
		return dir
	}

	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "approtate")
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "approtate")
	}

	// Last resort: use temp directory
	return filepath.Join(os.TempDir(), "approtate")
}

// SaveRun writes result and prunes old runs of the same application.
func (fs *FileStore) SaveRun(result *rotation.Result) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	runDir := fs.appDir(result.AppObjectID)
	if err := os.MkdirAll(runDir, 0o700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	name := fmt.Sprintf("%s-%s.json", result.FinishedAt.UTC().Format(fileTimeFormat), sanitizeFilename(result.RunID))
	tmp, err := os.CreateTemp(runDir, ".run-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(runDir, name)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write history file: %w", err)
	}

	if fs.keep > 0 {
		fs.prune(runDir)
	}
	return nil
}

// List returns runs newest first. An empty appObjectID lists every
// application. A limit of zero or less returns everything.
func (fs *FileStore) List(appObjectID string, limit int) ([]rotation.Result, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var dirs []string
	if appObjectID != "" {
		dirs = []string{fs.appDir(appObjectID)}
	} else {
		entries, err := os.ReadDir(filepath.Join(fs.baseDir, "runs"))
		if os.IsNotExist(err) {
			return []rotation.Result{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read history directory: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, filepath.Join(fs.baseDir, "runs", e.Name()))
			}
		}
	}

	results := []rotation.Result{}
	for _, dir := range dirs {
		files, err := runFiles(dir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				fs.logger.WithError(err).Debug("Skipping unreadable history file %s", f)
				continue
			}
			var res rotation.Result
			if err := json.Unmarshal(data, &res); err != nil {
				fs.logger.WithError(err).Debug("Skipping invalid history file %s", f)
				continue
			}
			results = append(results, res)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinishedAt.After(results[j].FinishedAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (fs *FileStore) appDir(appObjectID string) string {
	name := sanitizeFilename(appObjectID)
	if name == "" {
		name = "_unknown"
	}
	return filepath.Join(fs.baseDir, "runs", name)
}

// prune removes the oldest files beyond keep. Failures are logged, the run
// itself was saved.
func (fs *FileStore) prune(dir string) {
	files, err := runFiles(dir)
	if err != nil || len(files) <= fs.keep {
		return
	}
	for _, f := range files[fs.keep:] {
		if err := os.Remove(f); err != nil {
			fs.logger.WithError(err).Warn("Failed to remove old history file %s", f)
		}
	}
}

// runFiles lists run files in dir, newest first. The timestamp prefix makes
// name order chronological.
func runFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files, nil
}

// sanitizeFilename replaces characters that might be problematic in filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"\"", "-",
		"<", "-",
		">", "-",
		"|", "-",
		" ", "_",
		"..", "-",
	)
	return replacer.Replace(name)
}
