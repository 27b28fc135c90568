// Package store keeps macros as JSON files in a directory, one file per
// macro, named <name>.json.
package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"macroreplay/internal/macro"

	"github.com/fsnotify/fsnotify"
)

const ext = ".json"

var (
	// ErrNotFound is returned for a macro name with no file.
	ErrNotFound = errors.New("macro not found")
	// ErrInvalidName is returned for names that cannot be used as file names.
	ErrInvalidName = errors.New("invalid macro name")
)

// Info describes a stored macro without its events.
type Info struct {
	Name     string        `json:"name"`
	Events   int           `json:"events"`
	Duration time.Duration `json:"duration"`
	Size     int64         `json:"size"`
	Modified time.Time     `json:"modified"`
}

// Store is a directory of macro files. Methods are safe for concurrent use;
// writes are atomic so readers never see a partial file.
type Store struct {
	dir    string
	logger *slog.Logger
}

// Open returns a store rooted at dir, creating the directory if needed.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create macro directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file that holds the named macro.
func (s *Store) Path(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name+ext), nil
}

func checkName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\:`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q is hidden", ErrInvalidName, name)
	}
	return nil
}

// Names returns the stored macro names in sorted order.
func (s *Store) Names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read macro directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if name, ok := macroName(e.Name()); ok && !e.IsDir() {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func macroName(file string) (string, bool) {
	name, ok := strings.CutSuffix(file, ext)
	if !ok || checkName(name) != nil {
		return "", false
	}
	return name, true
}

// List describes every stored macro. Files that fail to decode are logged
// and left out.
func (s *Store) List() ([]Info, error) {
	names, err := s.Names()
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(names))
	for _, name := range names {
		info, err := s.Stat(name)
		if err != nil {
			s.logger.Warn("skipping unreadable macro", slog.String("name", name), slog.String("error", err.Error()))
			continue
		}
		infos = append(infos, info)
	}
	slices.SortFunc(infos, func(a, b Info) int { return cmp.Compare(a.Name, b.Name) })
	return infos, nil
}

// Stat describes one macro.
func (s *Store) Stat(name string) (Info, error) {
	path, err := s.Path(name)
	if err != nil {
		return Info{}, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return Info{}, notFound(name, err)
	}
	m, err := s.Load(name)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Name:     name,
		Events:   m.Len(),
		Duration: m.Duration(),
		Size:     fi.Size(),
		Modified: fi.ModTime(),
	}, nil
}

// Load reads and decodes the named macro.
func (s *Store) Load(name string) (macro.Macro, error) {
	path, err := s.Path(name)
	if err != nil {
		return macro.Macro{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return macro.Macro{}, notFound(name, err)
	}
	events, err := macro.Decode(data)
	if err != nil {
		return macro.Macro{}, fmt.Errorf("macro %q: %w", name, err)
	}
	return macro.New(name, events...), nil
}

// Save writes m under m.Name, replacing any existing file. The file is
// written to a temporary name first and renamed into place.
func (s *Store) Save(m macro.Macro) error {
	path, err := s.Path(m.Name)
	if err != nil {
		return err
	}
	data, err := macro.Encode(m.Events)
	if err != nil {
		return fmt.Errorf("failed to encode macro %q: %w", m.Name, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+m.Name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	s.logger.Debug("macro saved", slog.String("name", m.Name), slog.Int("events", m.Len()))
	return nil
}

// Delete removes the named macro.
func (s *Store) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return notFound(name, err)
	}
	return nil
}

func notFound(name string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return err
}

// Op is the kind of change reported by Watch.
type Op string

const (
	OpWrite  Op = "write"
	OpRemove Op = "remove"
)

// Change is a macro file that was written or removed.
type Change struct {
	Name string `json:"name"`
	Op   Op     `json:"op"`
}

// debounce coalesces the burst of events a single save produces.
const debounce = 100 * time.Millisecond

// Watch reports changes to the store until ctx is done. Temporary and
// non-macro files are ignored. fn runs on the watcher goroutine.
func (s *Store) Watch(ctx context.Context, fn func(Change)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	go func() {
		defer w.Close()

		pending := make(map[string]Op)
		timer := time.NewTimer(debounce)
		timer.Stop()

		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				name, ok := macroName(filepath.Base(ev.Name))
				if !ok {
					continue
				}
				switch {
				case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
					pending[name] = OpRemove
				case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
					pending[name] = OpWrite
				default:
					continue
				}
				timer.Reset(debounce)

			case <-timer.C:
				names := make([]string, 0, len(pending))
				for name := range pending {
					names = append(names, name)
				}
				slices.Sort(names)
				for _, name := range names {
					op := pending[name]
					// a rename over an existing file reports a remove for the old inode
					if op == OpRemove {
						if p, err := s.Path(name); err == nil {
							if _, err := os.Stat(p); err == nil {
								op = OpWrite
							}
						}
					}
					fn(Change{Name: name, Op: op})
				}
				clear(pending)

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("macro watcher error", slog.String("error", err.Error()))
			}
		}
	}()
	return nil
}
