package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const fsMetaSuffix = ".meta"

// local is a store that uses the local filesystem. Intended for development
// environments only; there are no checks that files aren't read outside of
// the intended path.
type local struct {
	path string
}

// NewLocalStore initializes a new local file storage creating the path if necessary.
func NewLocalStore(path string) (DeterministicStore, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewLocalStore: failed to make path '%s' absolute: %s", path, err)
	}
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("storage.NewLocalStore: failed to create path '%s': %s", path, err)
	}
	return &local{path: path}, nil
}

func (s *local) IDFromName(name string) string {
	return s.pathForID(name)
}

func (s *local) pathForID(id string) string {
	id = strings.TrimPrefix(id, "/")
	return filepath.Join(s.path, id)
}

func (s *local) Put(id string, data []byte, contentType string, meta map[string]string) (string, error) {
	return s.PutReader(id, bytes.NewReader(data), int64(len(data)), contentType, meta)
}

func (s *local) PutReader(id string, r io.ReadSeeker, size int64, contentType string, meta map[string]string) (string, error) {
	fullPath := s.pathForID(id)
	if !strings.HasPrefix(fullPath, s.path) {
		return "", fmt.Errorf("storage.local: invalid id %q", id)
	}
	f, err := os.Create(fullPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(fullPath)
		return "", err
	}
	if err := f.Sync(); err != nil {
		os.Remove(fullPath)
		return "", err
	}
	if meta == nil {
		meta = map[string]string{}
	}
	meta["Content-Length"] = strconv.FormatInt(size, 10)
	meta["Content-Type"] = contentType
	mf, err := os.Create(fullPath + fsMetaSuffix)
	if err != nil {
		os.Remove(fullPath)
		return "", err
	}
	defer mf.Close()
	if err := json.NewEncoder(mf).Encode(meta); err != nil {
		os.Remove(fullPath)
		os.Remove(fullPath + fsMetaSuffix)
		return "", err
	}
	return fullPath, nil
}

func (s *local) Get(id string) ([]byte, http.Header, error) {
	r, headers, err := s.GetReader(id)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	return data, headers, nil
}

func (s *local) GetReader(id string) (io.ReadCloser, http.Header, error) {
	fullPath := s.pathForID(id)
	f, err := os.Open(fullPath)
	if os.IsNotExist(err) {
		return nil, nil, ErrNoObject
	} else if err != nil {
		return nil, nil, err
	}
	headers := http.Header{}
	if mb, err := os.ReadFile(fullPath + fsMetaSuffix); err == nil {
		var meta map[string]string
		if err := json.Unmarshal(mb, &meta); err == nil {
			for k, v := range meta {
				headers.Set(k, v)
			}
		}
	}
	return f, headers, nil
}

func (s *local) Delete(id string) error {
	fullPath := s.pathForID(id)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	os.Remove(fullPath + fsMetaSuffix)
	return nil
}

func (s *local) ExpiringURL(id string, expiration time.Duration) (string, error) {
	return "file://" + s.pathForID(id), nil
}
