package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/duette-app/duette/common/logger"
	"github.com/duette-app/duette/common/objectkey"
)

// FileCamera stands in for a device camera: a recording "captures" an
// existing file, finishing when Stop is called. A Stop that arrives before
// Record ends the next recording immediately.
type FileCamera struct {
	source string

	mu        sync.Mutex
	stop      chan struct{}
	stopped   bool
	recording bool
}

// NewFileCamera creates a camera whose takes are the file at source
func NewFileCamera(source string) *FileCamera {
	return &FileCamera{source: source, stop: make(chan struct{})}
}

// Record blocks until Stop or ctx is done and returns the source path
func (c *FileCamera) Record(ctx context.Context) (string, error) {
	if _, err := os.Stat(c.source); err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.recording {
		c.mu.Unlock()
		return "", errors.New("camera already recording")
	}
	c.recording = true
	stop := c.stop
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.recording = false
		if c.stopped {
			c.stop = make(chan struct{})
			c.stopped = false
		}
		c.mu.Unlock()
	}()

	select {
	case <-stop:
		return c.source, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Stop ends the current or next recording
func (c *FileCamera) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		close(c.stop)
		c.stopped = true
	}
	return nil
}

// Downloader fetches an object through the proxy
type Downloader interface {
	Download(ctx context.Context, key string, w io.Writer) (int64, error)
}

// ObjectPlayer "plays" a reference video by fetching it through the object
// proxy. It reports Loaded once the object could be read.
type ObjectPlayer struct {
	objects Downloader
	videoID string
	log     *logger.Logger

	mu        sync.Mutex
	listeners map[int]func(Event)
	nextID    int
}

// NewObjectPlayer creates a player for the reference video of videoID
func NewObjectPlayer(objects Downloader, videoID string, log *logger.Logger) *ObjectPlayer {
	return &ObjectPlayer{
		objects:   objects,
		videoID:   videoID,
		log:       log,
		listeners: make(map[int]func(Event)),
	}
}

// Load fetches the reference video and reports its status
func (p *ObjectPlayer) Load(ctx context.Context) error {
	p.publish(PlaybackStatus{Loaded: false, Buffering: true})

	key := objectkey.Video(p.videoID)
	n, err := p.objects.Download(ctx, key, io.Discard)
	if err != nil {
		p.publish(PlaybackStatus{})
		return fmt.Errorf("load reference video %s: %w", key, err)
	}

	p.log.WithObjectKey(key).Debug("reference video loaded", "bytes", n)
	p.publish(PlaybackStatus{Loaded: true})
	return nil
}

// PlayFromStart is immediate, the whole video is already loaded
func (p *ObjectPlayer) PlayFromStart(ctx context.Context) error {
	p.log.WithVideoID(p.videoID).Debug("reference playback started")
	return nil
}

// Unload drops the loaded video
func (p *ObjectPlayer) Unload(ctx context.Context) error {
	p.publish(PlaybackStatus{})
	return nil
}

// Subscribe registers fn for player events
func (p *ObjectPlayer) Subscribe(fn func(Event)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *ObjectPlayer) publish(e Event) {
	p.mu.Lock()
	fns := make([]func(Event), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
