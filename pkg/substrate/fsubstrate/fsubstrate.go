// Package fsubstrate is a filesystem-backed substrate.Substrate: every
// blob is one regular file under a root directory, plus a zero-byte
// sibling "<name>.sealed" marker used to record the sealed bit (a
// plain filesystem has no native "sealed" flag to piggyback on).
//
// Active (writable) blobs are held open via *os.File and synced with
// the platform-specific datasync helper; sealed blobs are read back
// via golang.org/x/exp/mmap, since a blob that is no longer being
// appended to can be mapped once and read without repeated syscalls.
package fsubstrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/exp/mmap"

	"github.com/downfa11-org/rollstore/pkg/substrate"
	"github.com/downfa11-org/rollstore/util"
)

// FileSubstrate stores one blob per file under Root.
type FileSubstrate struct {
	root string

	mu   sync.Mutex
	open map[string]*fsHandle // name -> cached writable handle
}

// New creates a FileSubstrate rooted at dir. The directory must already
// exist.
func New(dir string) *FileSubstrate {
	return &FileSubstrate{root: dir, open: make(map[string]*fsHandle)}
}

type fsHandle struct {
	name string
	path string

	mu   sync.Mutex
	file *os.File // non-nil once opened for writing
}

func (h *fsHandle) Name() string { return h.name }

// escape turns a logical blob name into a safe, collision-free file
// name: '/' would otherwise be interpreted as a directory separator.
// '_' is doubled and the separator becomes "_s", so distinct names never
// map to the same file.
func escape(name string) string {
	return strings.NewReplacer("_", "__", string(os.PathSeparator), "_s").Replace(name)
}

func (s *FileSubstrate) path(name string) string {
	return filepath.Join(s.root, escape(name))
}

func sealedMarkerPath(path string) string {
	return path + ".sealed"
}

func isSealed(path string) bool {
	_, err := os.Stat(sealedMarkerPath(path))
	return err == nil
}

func (s *FileSubstrate) handleFor(name string) *fsHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.open[name]; ok {
		return h
	}
	h := &fsHandle{name: name, path: s.path(name)}
	s.open[name] = h
	return h
}

func wrapIOErr(op, name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", substrate.ErrNotExists, name)
	}
	return fmt.Errorf("%w: %s %s: %v", substrate.ErrIOError, op, name, err)
}

func (s *FileSubstrate) Create(name string) error {
	path := s.path(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", substrate.ErrAlreadyExists, name)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return wrapIOErr("stat", name, err)
	}

	// Create via temp-file-then-rename so a concurrent rollover racing
	// on the same derived name can never observe a partially-created
	// file under the final path.
	tmp := path + ".tmp-" + uuid.NewString()
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return wrapIOErr("create", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return wrapIOErr("create", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", substrate.ErrAlreadyExists, name)
		}
		return wrapIOErr("create", name, err)
	}
	return nil
}

func (s *FileSubstrate) OpenRead(name string) (substrate.Handle, error) {
	path := s.path(name)
	if _, err := os.Stat(path); err != nil {
		return nil, wrapIOErr("open", name, err)
	}
	return s.handleFor(name), nil
}

func (s *FileSubstrate) OpenWrite(name string) (substrate.Handle, error) {
	return s.OpenRead(name)
}

func (s *FileSubstrate) Read(h substrate.Handle, offset int64, buf []byte) (int, error) {
	fh := h.(*fsHandle)
	if offset < 0 {
		return 0, fmt.Errorf("%w: negative offset", substrate.ErrBadOffset)
	}
	if len(buf) == 0 {
		return 0, nil
	}

	if isSealed(fh.path) {
		r, err := mmap.Open(fh.path)
		if err != nil {
			return 0, wrapIOErr("read", fh.name, err)
		}
		defer r.Close()
		if offset >= int64(r.Len()) {
			return 0, nil
		}
		n := len(buf)
		if remaining := int64(r.Len()) - offset; int64(n) > remaining {
			n = int(remaining)
		}
		if _, err := r.ReadAt(buf[:n], offset); err != nil {
			return 0, wrapIOErr("read", fh.name, err)
		}
		return n, nil
	}

	fh.mu.Lock()
	defer fh.mu.Unlock()
	f, err := os.Open(fh.path)
	if err != nil {
		return 0, wrapIOErr("read", fh.name, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, wrapIOErr("read", fh.name, err)
	}
	if offset >= info.Size() {
		return 0, nil
	}
	n := len(buf)
	if remaining := info.Size() - offset; int64(n) > remaining {
		n = int(remaining)
	}
	read, err := f.ReadAt(buf[:n], offset)
	if err != nil && read == 0 {
		return 0, wrapIOErr("read", fh.name, err)
	}
	return read, nil
}

func (s *FileSubstrate) ensureOpenForWrite(fh *fsHandle) (*os.File, error) {
	if fh.file != nil {
		return fh.file, nil
	}
	f, err := os.OpenFile(fh.path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, wrapIOErr("open", fh.name, err)
	}
	fh.file = f
	return f, nil
}

func (s *FileSubstrate) Write(h substrate.Handle, offset int64, data []byte) error {
	fh := h.(*fsHandle)
	fh.mu.Lock()
	defer fh.mu.Unlock()

	if isSealed(fh.path) {
		return fmt.Errorf("%w: %s", substrate.ErrSealed, fh.name)
	}

	f, err := s.ensureOpenForWrite(fh)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		return wrapIOErr("write", fh.name, err)
	}
	if offset != info.Size() {
		return fmt.Errorf("%w: %s expected %d got %d", substrate.ErrBadOffset, fh.name, info.Size(), offset)
	}
	if len(data) == 0 {
		return nil
	}
	if _, err := f.WriteAt(data, offset); err != nil {
		return wrapIOErr("write", fh.name, err)
	}
	if err := datasync(f); err != nil {
		util.Warn("fsubstrate: datasync failed for %s: %v", fh.name, err)
	}
	return nil
}

func (s *FileSubstrate) Seal(h substrate.Handle) error {
	fh := h.(*fsHandle)
	fh.mu.Lock()
	defer fh.mu.Unlock()

	if fh.file != nil {
		if err := datasync(fh.file); err != nil {
			util.Warn("fsubstrate: datasync on seal failed for %s: %v", fh.name, err)
		}
		if err := fh.file.Close(); err != nil {
			util.Warn("fsubstrate: close on seal failed for %s: %v", fh.name, err)
		}
		fh.file = nil
	}

	if isSealed(fh.path) {
		return nil
	}
	if err := os.WriteFile(sealedMarkerPath(fh.path), nil, 0o644); err != nil {
		return wrapIOErr("seal", fh.name, err)
	}
	return nil
}

func (s *FileSubstrate) Concat(target substrate.Handle, offset int64, sourceName string) error {
	fh := target.(*fsHandle)
	fh.mu.Lock()
	defer fh.mu.Unlock()

	if isSealed(fh.path) {
		return fmt.Errorf("%w: %s", substrate.ErrSealed, fh.name)
	}

	f, err := s.ensureOpenForWrite(fh)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		return wrapIOErr("concat", fh.name, err)
	}
	if offset != info.Size() {
		return fmt.Errorf("%w: %s expected %d got %d", substrate.ErrBadOffset, fh.name, info.Size(), offset)
	}

	srcPath := s.path(sourceName)
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return wrapIOErr("concat", sourceName, err)
	}
	if len(data) > 0 {
		if _, err := f.WriteAt(data, offset); err != nil {
			return wrapIOErr("concat", fh.name, err)
		}
	}
	if err := datasync(f); err != nil {
		util.Warn("fsubstrate: datasync failed for %s: %v", fh.name, err)
	}

	if err := os.Remove(srcPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrapIOErr("concat", sourceName, err)
	}
	_ = os.Remove(sealedMarkerPath(srcPath))

	s.mu.Lock()
	delete(s.open, sourceName)
	s.mu.Unlock()
	return nil
}

func (s *FileSubstrate) Delete(h substrate.Handle) error {
	fh := h.(*fsHandle)
	fh.mu.Lock()
	if fh.file != nil {
		_ = fh.file.Close()
		fh.file = nil
	}
	fh.mu.Unlock()

	s.mu.Lock()
	delete(s.open, fh.name)
	s.mu.Unlock()

	_ = os.Remove(sealedMarkerPath(fh.path))
	if err := os.Remove(fh.path); err != nil {
		return wrapIOErr("delete", fh.name, err)
	}
	return nil
}

func (s *FileSubstrate) Exists(name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat %s: %v", substrate.ErrIOError, name, err)
}

func (s *FileSubstrate) Stat(name string) (substrate.BlobInfo, error) {
	path := s.path(name)
	info, err := os.Stat(path)
	if err != nil {
		return substrate.BlobInfo{}, wrapIOErr("stat", name, err)
	}
	return substrate.BlobInfo{Name: name, Length: info.Size(), Sealed: isSealed(path)}, nil
}
