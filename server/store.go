package server

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/chaos-io/outline/util"
)

// ErrResultNotFound is returned for unknown result ids or file names.
var ErrResultNotFound = errors.New("result not found")

var resultName = regexp.MustCompile(`^[a-z0-9-]+\.(png|svg)$`)

// Store keeps each request's outputs in <dir>/<ksuid>/.
type Store struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates dir if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger, now: time.Now}, nil
}

// Result is one request's output directory.
type Result struct {
	ID    ksuid.KSUID
	dir   string
	Files map[string]string
}

// Create allocates a new result directory.
func (s *Store) Create() (*Result, error) {
	id, err := ksuid.NewRandomWithTime(s.now())
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(s.dir, id.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create result dir: %w", err)
	}
	return &Result{ID: id, dir: dir, Files: map[string]string{}}, nil
}

// SavePNG stores img as <name>.png.
func (r *Result) SavePNG(name string, img image.Image) error {
	file := name + ".png"
	if err := util.SavePNG(filepath.Join(r.dir, file), img); err != nil {
		return err
	}
	r.Files[name] = file
	return nil
}

// SaveSVG stores svg as <name>.svg.
func (r *Result) SaveSVG(name, svg string) error {
	file := name + ".svg"
	if err := util.SaveText(filepath.Join(r.dir, file), svg); err != nil {
		return err
	}
	r.Files[name] = file
	return nil
}

// Path resolves a stored file, rejecting anything that is not a known id and plain file name.
func (s *Store) Path(id, name string) (string, error) {
	parsed, err := ksuid.Parse(id)
	if err != nil || !resultName.MatchString(name) {
		return "", ErrResultNotFound
	}
	path := filepath.Join(s.dir, parsed.String(), name)
	if _, err := os.Stat(path); err != nil {
		return "", ErrResultNotFound
	}
	return path, nil
}

// Prune removes result directories whose id is older than maxAge and returns how many went.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := ksuid.Parse(e.Name())
		if err != nil || !id.Time().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			s.logger.Warn("failed to remove expired result", zap.String("id", e.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// Discard removes the result directory.
func (r *Result) Discard() error {
	return os.RemoveAll(r.dir)
}
