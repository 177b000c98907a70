package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"sync"
)

type memObject struct {
	data        []byte
	contentType string
	etag        string
	version     int64
}

// MemoryStore keeps objects in process memory. It mimics S3 error codes.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*memObject
	version int64
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*memObject)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, body []byte, contentType string) (*PutResult, error) {
	if key == "" {
		return nil, invalidKey()
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	sum := md5.Sum(body)
	data := make([]byte, len(body))
	copy(data, body)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	obj := &memObject{
		data:        data,
		contentType: contentType,
		etag:        `"` + hex.EncodeToString(sum[:]) + `"`,
		version:     s.version,
	}
	s.objects[key] = obj

	return &PutResult{
		Key:       key,
		ETag:      obj.etag,
		VersionID: strconv.FormatInt(obj.version, 10),
		Size:      int64(len(data)),
	}, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Object, error) {
	if key == "" {
		return nil, invalidKey()
	}

	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, noSuchKey()
	}

	return &Object{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentType:   obj.contentType,
		ContentLength: int64(len(obj.data)),
		ETag:          obj.etag,
	}, nil
}

// Delete succeeds for missing keys, the same as S3 DeleteObject
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return invalidKey()
	}

	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Keys lists stored keys, for tests and debugging
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

func invalidKey() *Error {
	return &Error{
		Code:       "InvalidArgument",
		Message:    "Object key must not be empty.",
		StatusCode: http.StatusBadRequest,
	}
}
