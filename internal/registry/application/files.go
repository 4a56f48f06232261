package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/zjrosen/cbconfig/internal/log"
	"github.com/zjrosen/cbconfig/internal/registry/domain"
)

// documentStore is the registry's view of the configuration directory.
// Only the registry writes through it.
type documentStore interface {
	Dir() string
	Path(id domain.Identifier) string
	Stat(id domain.Identifier) (fs.FileInfo, error)
	Read(id domain.Identifier) ([]byte, error)
	// Write replaces the file for id atomically: readers see the old
	// content or the new content, never a mix.
	Write(id domain.Identifier, data []byte) error
	Remove(id domain.Identifier) error
	// Trash moves the file for id aside and returns where it went, so a
	// delete can be undone with Restore until Purge runs.
	Trash(id domain.Identifier) (string, error)
	Restore(id domain.Identifier, trashPath string) error
	Purge(trashPath string) error
	// Scan lists identifiers with a NNNNNN.json file, ascending.
	Scan() ([]domain.Identifier, error)
}

type fileStore struct {
	dir string
}

func newFileStore(dir string) *fileStore {
	return &fileStore{dir: dir}
}

var _ documentStore = (*fileStore)(nil)

func (s *fileStore) Dir() string { return s.dir }

func (s *fileStore) Path(id domain.Identifier) string {
	return filepath.Join(s.dir, id.Filename())
}

func (s *fileStore) Stat(id domain.Identifier) (fs.FileInfo, error) {
	return os.Stat(s.Path(id))
}

func (s *fileStore) Read(id domain.Identifier) ([]byte, error) {
	return os.ReadFile(s.Path(id)) //nolint:gosec // G304: path built from a validated identifier
}

// Write stages data in a hidden temp file next to the target, syncs it and
// renames it into place, then syncs the directory so the rename survives a
// crash.
func (s *fileStore) Write(id domain.Identifier, data []byte) (err error) {
	tmpPath := filepath.Join(s.dir, "."+id.Filename()+"."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //nolint:gosec // G304: see above
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path(id)); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	s.syncDir()

	log.Debug(log.CatFiles, "document written", "file", id.Filename(), "bytes", len(data))
	return nil
}

func (s *fileStore) Remove(id domain.Identifier) error {
	if err := os.Remove(s.Path(id)); err != nil {
		return err
	}
	s.syncDir()
	log.Debug(log.CatFiles, "document removed", "file", id.Filename())
	return nil
}

func (s *fileStore) Trash(id domain.Identifier) (string, error) {
	trashPath := filepath.Join(s.dir, "."+id.Filename()+"."+uuid.NewString()+".trash")
	if err := os.Rename(s.Path(id), trashPath); err != nil {
		return "", err
	}
	return trashPath, nil
}

func (s *fileStore) Restore(id domain.Identifier, trashPath string) error {
	if err := os.Rename(trashPath, s.Path(id)); err != nil {
		return err
	}
	s.syncDir()
	return nil
}

func (s *fileStore) Purge(trashPath string) error {
	if err := os.Remove(trashPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	s.syncDir()
	return nil
}

func (s *fileStore) Scan() ([]domain.Identifier, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var ids []domain.Identifier
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if id, ok := domain.IdentifierFromFilename(entry.Name()); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// syncDir is best effort: some platforms cannot fsync a directory.
func (s *fileStore) syncDir() {
	d, err := os.Open(s.dir)
	if err != nil {
		return
	}
	if err := d.Sync(); err != nil {
		log.Debug(log.CatFiles, "directory sync failed", "dir", s.dir, "error", err)
	}
	_ = d.Close()
}
