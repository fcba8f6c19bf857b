package ladder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sameera/osem-ladders-sub001/internal/models"
)

// ManifestFile is the optional catalog manifest inside a ladders directory
const ManifestFile = "ladder.yaml"

// ErrLadderNotFound is returned when a ladder id is not in the catalog
var ErrLadderNotFound = errors.New("ladder not found")

// Loader manages loading and caching of parsed ladders
type Loader struct {
	mu       sync.RWMutex
	dir      string
	ladders  map[string]*models.Ladder
	manifest map[string]manifestEntry
}

// NewLoader creates a new ladder loader
func NewLoader() *Loader {
	return &Loader{
		ladders:  make(map[string]*models.Ladder),
		manifest: make(map[string]manifestEntry),
	}
}

// LoadFromDir loads every markdown ladder in a directory.
// A broken file is logged and skipped so one bad ladder never hides the rest.
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading ladders from directory", "dir", dir)

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("failed to stat ladders dir: %w", err)
	}

	l.mu.Lock()
	l.dir = dir
	l.mu.Unlock()

	if err := l.loadManifest(filepath.Join(dir, ManifestFile)); err != nil {
		slog.Warn("failed to load ladder manifest", "dir", dir, "error", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return fmt.Errorf("failed to scan ladders dir: %w", err)
	}

	loaded := 0
	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			slog.Warn("failed to load ladder", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("ladders loaded", "count", loaded, "total_files", len(files))
	return nil
}

// LoadFromFile parses a single markdown file and registers it under its file stem
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	id := IDFromPath(path)
	if id == "" {
		return fmt.Errorf("cannot derive ladder id from %q", path)
	}

	ladder := &models.Ladder{
		ID:         id,
		Name:       id,
		Source:     path,
		Categories: Parse(string(data)),
	}

	l.mu.Lock()
	if entry, ok := l.manifest[id]; ok {
		if entry.Name != "" {
			ladder.Name = entry.Name
		}
		ladder.Description = entry.Description
	}
	l.ladders[id] = ladder
	l.mu.Unlock()

	slog.Info("ladder loaded", "id", id,
		"categories", len(ladder.Categories), "competencies", ladder.CompetencyCount())
	return nil
}

// Get retrieves a ladder by id
func (l *Loader) Get(id string) *models.Ladder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ladders[id]
}

// Lookup retrieves a ladder by id or returns ErrLadderNotFound
func (l *Loader) Lookup(id string) (*models.Ladder, error) {
	if ladder := l.Get(id); ladder != nil {
		return ladder, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrLadderNotFound, id)
}

// List returns all loaded ladders sorted by id
func (l *Loader) List() []*models.Ladder {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Ladder, 0, len(l.ladders))
	for _, ladder := range l.ladders {
		result = append(result, ladder)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Add programmatically adds a ladder
func (l *Loader) Add(ladder *models.Ladder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ladders[ladder.ID] = ladder
}

// Remove removes a ladder by id
func (l *Loader) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.ladders, id)
}

// IDFromPath returns the ladder id for a markdown file path
func IDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// loadManifest reads ladder.yaml; a missing manifest is not an error
func (l *Loader) loadManifest(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return fmt.Errorf("failed to parse manifest YAML: %w", err)
	}

	entries := make(map[string]manifestEntry, len(mf.Ladders))
	for _, entry := range mf.Ladders {
		if entry.ID == "" {
			slog.Warn("manifest entry without id skipped", "name", entry.Name)
			continue
		}
		entries[entry.ID] = entry
	}

	l.mu.Lock()
	l.manifest = entries
	l.mu.Unlock()
	return nil
}

// --- YAML file structs ---

// manifestFile represents the YAML structure of ladder.yaml
type manifestFile struct {
	Ladders []manifestEntry `yaml:"ladders"`
}

type manifestEntry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}
