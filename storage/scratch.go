package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Scratch is a per-download directory of numbered part files under a shared
// root. Files live at {root}/{uuid}/part-{index}.
type Scratch struct {
	root string
	dir  string
}

// NewScratch creates a fresh scratch directory beneath root. The root is
// created if it does not exist.
func NewScratch(root string) (*Scratch, error) {
	if root == "" {
		return nil, ErrInvalidBaseDir
	}
	dir := filepath.Join(root, uuid.NewString())

	// Another download's Cleanup may remove an empty root between the two
	// mkdir calls; the root is then recreated.
	var err error
	for range mkdirAttempts {
		if err = os.MkdirAll(root, 0700); err != nil {
			break
		}
		if rootCreated != nil {
			rootCreated(root)
		}
		if err = os.Mkdir(dir, 0700); !errors.Is(err, os.ErrNotExist) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return &Scratch{root: root, dir: dir}, nil
}

const mkdirAttempts = 3

// rootCreated, when set, runs after the root exists and before the download's
// directory is made.
var rootCreated func(root string)

// Dir returns the scratch directory owned by this download.
func (s *Scratch) Dir() string {
	return s.dir
}

// PartPath returns the file path of part index.
func (s *Scratch) PartPath(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("part-%06d", index))
}

// WritePart stores the bytes of part index.
func (s *Scratch) WritePart(index int, data []byte) error {
	if err := os.WriteFile(s.PartPath(index), data, 0600); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// Reader returns a reader over parts [0, count) in order. Reads cross part
// file boundaries transparently, so a block may span two files.
func (s *Scratch) Reader(count int) io.ReadCloser {
	return &partReader{scratch: s, count: count}
}

// Cleanup removes this download's directory and then the shared root if it is
// left empty. Other downloads' directories under the same root are untouched.
func (s *Scratch) Cleanup() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if len(entries) > 0 {
		return nil
	}
	// A concurrent download may have created its directory since ReadDir;
	// Remove then fails because the root is no longer empty.
	if err := os.Remove(s.root); err != nil && !errors.Is(err, os.ErrNotExist) && !isNotEmpty(s.root) {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

func isNotEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// partReader chains part files, opening each one only when reached.
type partReader struct {
	scratch *Scratch
	count   int
	next    int
	cur     *os.File
}

func (r *partReader) Read(p []byte) (int, error) {
	for {
		if r.cur == nil {
			if r.next >= r.count {
				return 0, io.EOF
			}
			f, err := os.Open(r.scratch.PartPath(r.next))
			if err != nil {
				return 0, fmt.Errorf("%w: %w", ErrIOFailure, err)
			}
			r.cur = f
			r.next++
		}

		n, err := r.cur.Read(p)
		if errors.Is(err, io.EOF) {
			r.cur.Close()
			r.cur = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (r *partReader) Close() error {
	if r.cur == nil {
		return nil
	}
	err := r.cur.Close()
	r.cur = nil
	return err
}
