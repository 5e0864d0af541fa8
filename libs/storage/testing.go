package storage

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

type readCloser struct {
	io.Reader
}

func (readCloser) Close() error {
	return nil
}

// TestObject is a blob held by the test store.
type TestObject struct {
	Data    []byte
	Headers http.Header
}

type testStore struct {
	mu      sync.Mutex
	objects map[string]*TestObject
	deletes map[string]int
}

// NewTestStore returns an in-memory DeterministicStore seeded with the provided objects.
func NewTestStore(objects map[string]*TestObject) DeterministicStore {
	if objects == nil {
		objects = make(map[string]*TestObject)
	}
	return &testStore{
		objects: objects,
		deletes: make(map[string]int),
	}
}

func (s *testStore) IDFromName(name string) string {
	return name
}

func (s *testStore) Put(name string, data []byte, contentType string, meta map[string]string) (string, error) {
	s.mu.Lock()
	headers := http.Header{}
	headers.Set("Content-Length", strconv.Itoa(len(data)))
	headers.Set("Content-Type", contentType)
	for k, v := range meta {
		headers.Set(k, v)
	}
	s.objects[name] = &TestObject{Data: data, Headers: headers}
	s.mu.Unlock()
	return name, nil
}

func (s *testStore) PutReader(name string, r io.ReadSeeker, size int64, contentType string, meta map[string]string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return s.Put(name, data, contentType, meta)
}

func (s *testStore) Get(id string) ([]byte, http.Header, error) {
	s.mu.Lock()
	o := s.objects[id]
	s.mu.Unlock()
	if o == nil {
		return nil, nil, ErrNoObject
	}
	return o.Data, o.Headers, nil
}

func (s *testStore) GetReader(id string) (io.ReadCloser, http.Header, error) {
	data, headers, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	return readCloser{bytes.NewReader(data)}, headers, nil
}

func (s *testStore) Delete(id string) error {
	s.mu.Lock()
	delete(s.objects, id)
	s.deletes[id]++
	s.mu.Unlock()
	return nil
}

// DeleteCount reports how many times Delete was called for the given id.
func DeleteCount(s DeterministicStore, id string) int {
	ts, ok := s.(*testStore)
	if !ok {
		return 0
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.deletes[id]
}

func (s *testStore) ExpiringURL(id string, expiration time.Duration) (string, error) {
	return id, nil
}
