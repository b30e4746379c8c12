package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/dudk/montage"
	"github.com/dudk/montage/picture"
)

// DefaultPattern names image files by frame position.
const DefaultPattern = "%05d.png"

// Images writes the picture of every pushed frame to its own file. The
// file format follows the extension of the pattern.
type Images struct {
	dir     string
	pattern string
	mu      sync.Mutex
	written []string
	done    bool
}

// NewImages returns a store writing into dir. Pattern takes the frame
// position, DefaultPattern is used when it's empty.
func NewImages(dir, pattern string) (*Images, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	probe := fmt.Sprintf(pattern, 0)
	if !supported(filepath.Ext(probe)) {
		return nil, errors.Wrapf(picture.ErrUnsupportedFormat, "pattern '%s'", pattern)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "images")
	}
	return &Images{dir: dir, pattern: pattern}, nil
}

func supported(ext string) bool {
	for _, e := range picture.Extensions() {
		if e == ext {
			return true
		}
	}
	return false
}

// Push writes the picture of f. Frames without picture are skipped.
func (s *Images) Push(f *montage.Frame) error {
	if f == nil || !f.HasImage() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrCompleted
	}
	path := filepath.Join(s.dir, fmt.Sprintf(s.pattern, f.Position()))
	if err := picture.Store(path, f.Image()); err != nil {
		return errors.Wrapf(err, "frame %d", f.Position())
	}
	s.written = append(s.written, path)
	return nil
}

// Flush has nothing to return.
func (s *Images) Flush() (*montage.Frame, error) {
	return nil, nil
}

// Complete rejects further pushes.
func (s *Images) Complete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	return nil
}

// Written returns paths of the written files.
func (s *Images) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]string, len(s.written))
	copy(result, s.written)
	return result
}
