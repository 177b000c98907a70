// Package library is the client-side application state: the current video
// collection and the workflows that change it through the catalog and the
// object proxy. A Library is created once by the caller and passed to
// whatever needs it.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/duette-app/duette/common/clients"
	"github.com/duette-app/duette/common/logger"
	"github.com/duette-app/duette/common/objectkey"
)

// Catalog is the subset of clients.CatalogClient the library uses
type Catalog interface {
	ListVideos(ctx context.Context, search string, opts ...clients.ListOption) ([]clients.Video, error)
	CreateVideo(ctx context.Context, details clients.VideoDetails) (*clients.Video, error)
	DeleteVideo(ctx context.Context, id string) error
}

// Objects is the subset of clients.ObjectClient the library uses
type Objects interface {
	Delete(ctx context.Context, key string) error
	Download(ctx context.Context, key string, w io.Writer) (int64, error)
}

// EventSource delivers catalog change notifications
type EventSource interface {
	Subscribe(ctx context.Context, handler func(clients.CatalogEvent)) (func(), error)
}

// Library holds the video collection
type Library struct {
	catalog Catalog
	objects Objects
	log     *logger.Logger

	mu         sync.RWMutex
	videos     []clients.Video
	lastSearch string

	subMu       sync.Mutex
	subscribers map[int]func([]clients.Video)
	nextSub     int
}

// New creates an empty library
func New(catalog Catalog, objects Objects, log *logger.Logger) *Library {
	return &Library{
		catalog:     catalog,
		objects:     objects,
		log:         log,
		subscribers: make(map[int]func([]clients.Video)),
	}
}

// Videos returns a snapshot of the collection
func (l *Library) Videos() []clients.Video {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]clients.Video, len(l.videos))
	copy(out, l.videos)
	return out
}

// Subscribe calls fn with a snapshot every time the collection is replaced
func (l *Library) Subscribe(fn func([]clients.Video)) (unsubscribe func()) {
	l.subMu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subscribers[id] = fn
	l.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.subMu.Lock()
			delete(l.subscribers, id)
			l.subMu.Unlock()
		})
	}
}

// FetchVideos replaces the collection with the catalog's list. On failure
// the collection is left as it was.
func (l *Library) FetchVideos(ctx context.Context, search string) error {
	videos, err := l.catalog.ListVideos(ctx, search)
	if err != nil {
		return fmt.Errorf("fetch videos: %w", err)
	}

	l.mu.Lock()
	l.videos = videos
	l.lastSearch = search
	l.mu.Unlock()

	l.log.Debug("video collection replaced", "count", len(videos), "search", search)
	l.notify()
	return nil
}

func (l *Library) notify() {
	snapshot := l.Videos()

	l.subMu.Lock()
	fns := make([]func([]clients.Video), 0, len(l.subscribers))
	for _, fn := range l.subscribers {
		fns = append(fns, fn)
	}
	l.subMu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

// PostVideo creates a video and then refetches the unfiltered list
func (l *Library) PostVideo(ctx context.Context, details clients.VideoDetails) (*clients.Video, error) {
	video, err := l.catalog.CreateVideo(ctx, details)
	if err != nil {
		return nil, fmt.Errorf("post video: %w", err)
	}
	l.log.WithVideoID(video.ID).Info("video posted", "title", video.Title)

	if err := l.FetchVideos(ctx, ""); err != nil {
		return video, err
	}
	return video, nil
}

// SaveDuette downloads a duette take to <dir>/<videoID><duetteID>.mov and
// returns the file path. A partial file is removed on failure.
func (l *Library) SaveDuette(ctx context.Context, videoID, duetteID, dir string) (string, error) {
	if err := objectkey.Validate(videoID, duetteID); err != nil {
		return "", fmt.Errorf("save duette: %w", err)
	}
	key := objectkey.Duette(videoID, duetteID)
	path := filepath.Join(dir, key)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	n, err := l.objects.Download(ctx, key, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("save duette %s: %w", key, err)
	}

	l.log.WithObjectKey(key).Info("duette saved", "path", path, "bytes", n)
	return path, nil
}

// Sync refetches the collection, with the last used search, whenever a
// catalog event arrives. It blocks until ctx is done.
func (l *Library) Sync(ctx context.Context, events EventSource) error {
	unsubscribe, err := events.Subscribe(ctx, func(event clients.CatalogEvent) {
		l.mu.RLock()
		search := l.lastSearch
		l.mu.RUnlock()

		l.log.Debug("catalog event received", "type", event.Type, "video_id", event.VideoID)
		if err := l.FetchVideos(ctx, search); err != nil && !errors.Is(err, context.Canceled) {
			l.log.Warn("refresh after catalog event failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	<-ctx.Done()
	return nil
}
