// Package storage abstracts blob storage behind a Store interface with S3,
// local filesystem, and in-memory test implementations.
package storage

import (
	"errors"
	"io"
	"net/http"
	"time"
)

// ErrNoObject is returned when the requested object does not exist.
var ErrNoObject = errors.New("storage: no object")

// Store reads and writes blobs addressed by an opaque ID returned from Put.
type Store interface {
	Put(name string, data []byte, contentType string, meta map[string]string) (string, error)
	PutReader(name string, r io.ReadSeeker, size int64, contentType string, meta map[string]string) (string, error)
	Get(id string) ([]byte, http.Header, error)
	GetReader(id string) (io.ReadCloser, http.Header, error)
	Delete(id string) error
	ExpiringURL(id string, expiration time.Duration) (string, error)
}

// DeterministicStore is a version of Store that uses a deterministic
// value for ID so that it can be generated from the name given to Put(Reader).
type DeterministicStore interface {
	Store
	IDFromName(name string) string
}
