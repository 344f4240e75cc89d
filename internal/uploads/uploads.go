// Package uploads persists cover images on local disk. Files are written
// before the database record that references them; a failed record write
// leaves the file behind, which is accepted.
package uploads

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"
)

// URLPrefix is the public path uploaded files are served under.
const URLPrefix = "/uploads/"

type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes the uploaded file under the store directory with a
// timestamp-based name and returns its public relative path.
func (s *Store) Save(file multipart.File, header *multipart.FileHeader) (string, error) {
	name := fmt.Sprintf("%d%s", time.Now().UnixNano(), filepath.Ext(header.Filename))

	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}

	return URLPrefix + name, nil
}
