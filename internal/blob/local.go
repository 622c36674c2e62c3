package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// localStore keeps objects in a directory on disk, one file per object plus
// a small metadata sidecar. It is the development default.
type localStore struct {
	root string
}

type localMetadata struct {
	ContentType string `json:"content_type"`
}

func newLocalStore(dir string) (*localStore, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "./data/images"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create local storage dir: %w", err)
	}
	return &localStore{root: dir}, nil
}

func (s *localStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	path, metaPath, err := s.pathsForKey(key)
	if err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(s.root, "upload-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tempFile.Name(), path); err != nil {
		return err
	}

	meta, err := json.Marshal(localMetadata{ContentType: contentType})
	if err != nil {
		return err
	}
	return os.WriteFile(metaPath, meta, 0o640)
}

func (s *localStore) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	default:
	}

	path, metaPath, err := s.pathsForKey(key)
	if err != nil {
		return nil, "", err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}

	contentType := "application/octet-stream"
	if raw, err := os.ReadFile(metaPath); err == nil {
		var meta localMetadata
		if json.Unmarshal(raw, &meta) == nil && meta.ContentType != "" {
			contentType = meta.ContentType
		}
	}

	return file, contentType, nil
}

// pathsForKey rejects keys that would escape the storage root.
func (s *localStore) pathsForKey(key string) (string, string, error) {
	cleaned := filepath.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.Contains(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", "", fmt.Errorf("invalid object key %q", key)
	}
	path := filepath.Join(s.root, cleaned)
	return path, path + ".meta", nil
}
