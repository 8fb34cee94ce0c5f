package suota

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Store keeps the image being received and the active image.
type Store interface {
	// Begin starts a new image, discarding any unfinished one.
	Begin() error
	// WriteAt writes image bytes of the current image.
	WriteAt(p []byte, off int64) (int, error)
	// Commit makes the current image the active one.
	Commit(hdr *Header) error
	// Abort discards the current image.
	Abort() error
	// ActiveVersion returns the version of the active image, nil if none.
	ActiveVersion() (*semver.Version, error)
}

const (
	partialFile = "image.partial"
	imageFile   = "image.bin"
	versionFile = "image.version"
)

// FileStore keeps images as files in a directory.
type FileStore struct {
	Dir string

	file *os.File
}

// NewFileStore creates a FileStore.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// ImagePath is the path of the active image.
func (s *FileStore) ImagePath() string {
	return filepath.Join(s.Dir, imageFile)
}

// Begin implements Store.
func (s *FileStore) Begin() error {
	s.Abort()
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return errors.Wrap(err, "create image dir")
	}
	f, err := os.OpenFile(filepath.Join(s.Dir, partialFile), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "create partial image")
	}
	s.file = f
	return nil
}

// WriteAt implements Store.
func (s *FileStore) WriteAt(p []byte, off int64) (int, error) {
	if s.file == nil {
		return 0, errors.New("no image in progress")
	}
	n, err := s.file.WriteAt(p, off)
	return n, errors.Wrapf(err, "write image at %d", off)
}

// Commit implements Store.
func (s *FileStore) Commit(hdr *Header) error {
	if s.file == nil {
		return errors.New("no image in progress")
	}
	f := s.file
	s.file = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrap(err, "sync image")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close image")
	}
	if err := os.Rename(f.Name(), s.ImagePath()); err != nil {
		return errors.Wrap(err, "activate image")
	}
	tmp := filepath.Join(s.Dir, versionFile+".tmp")
	if err := ioutil.WriteFile(tmp, []byte(hdr.Version.String()+"\n"), 0644); err != nil {
		return errors.Wrap(err, "write image version")
	}
	return errors.Wrap(os.Rename(tmp, filepath.Join(s.Dir, versionFile)), "activate image version")
}

// Abort implements Store.
func (s *FileStore) Abort() error {
	if s.file == nil {
		return nil
	}
	f := s.file
	s.file = nil
	f.Close()
	if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove partial image")
	}
	return nil
}

// ActiveVersion implements Store.
func (s *FileStore) ActiveVersion() (*semver.Version, error) {
	data, err := ioutil.ReadFile(filepath.Join(s.Dir, versionFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read image version")
	}
	ver, err := semver.NewVersion(strings.TrimSpace(string(data)))
	return ver, errors.Wrap(err, "parse image version")
}

// MemStore keeps images in memory.
type MemStore struct {
	lock    sync.Mutex
	current []byte
	active  []byte
	version *semver.Version
	writing bool
}

// Begin implements Store.
func (s *MemStore) Begin() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.current, s.writing = nil, true
	return nil
}

// WriteAt implements Store.
func (s *MemStore) WriteAt(p []byte, off int64) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.writing {
		return 0, errors.New("no image in progress")
	}
	if end := int(off) + len(p); end > len(s.current) {
		s.current = append(s.current, make([]byte, end-len(s.current))...)
	}
	return copy(s.current[off:], p), nil
}

// Commit implements Store.
func (s *MemStore) Commit(hdr *Header) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.writing {
		return errors.New("no image in progress")
	}
	s.active, s.version = s.current, hdr.Version
	s.current, s.writing = nil, false
	return nil
}

// Abort implements Store.
func (s *MemStore) Abort() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.current, s.writing = nil, false
	return nil
}

// ActiveVersion implements Store.
func (s *MemStore) ActiveVersion() (*semver.Version, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.version, nil
}

// Active returns a copy of the active image.
func (s *MemStore) Active() []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]byte(nil), s.active...)
}
