// Package recording drives the record and review cycle of a duette take:
// the camera records while the reference video plays, the take is reviewed
// and then discarded or saved.
package recording

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/duette-app/duette/common/clients"
	"github.com/duette-app/duette/common/logger"
)

// State of a Flow
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateReviewing State = "reviewing"
	StateDiscarded State = "discarded"
	StateSaved     State = "saved"
	StateError     State = "error"
)

var (
	// ErrInvalidTransition is returned when an action is not allowed in the current state
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNotReady is returned by Start while the reference video is not playable
	ErrNotReady = errors.New("reference video not ready")
	// ErrClosed is returned by every action after Cancel or Close
	ErrClosed = errors.New("flow closed")
)

// Camera records a take. Record blocks until Stop is called or recording
// fails, and returns the local file URI of the take.
type Camera interface {
	Record(ctx context.Context) (string, error)
	Stop() error
}

// Player plays the reference video
type Player interface {
	PlayFromStart(ctx context.Context) error
	Unload(ctx context.Context) error
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Uploader stores a reviewed take for a video
type Uploader interface {
	Upload(ctx context.Context, videoID, fileURI string) (*clients.Duette, error)
}

// Flow is the record and review state machine for one reference video
type Flow struct {
	videoID  string
	camera   Camera
	player   Player
	uploader Uploader
	log      *logger.Logger

	mu          sync.Mutex
	state       State
	status      PlaybackStatus
	orientation Orientation
	fileURI     string
	err         error
	saved       *clients.Duette
	saving      bool
	recordDone  chan struct{}
	closed      bool
	listeners   []func(State)

	unsubscribe func()
	closeOnce   sync.Once
}

// NewFlow creates an idle flow and subscribes to player events until Close
func NewFlow(videoID string, camera Camera, player Player, uploader Uploader, log *logger.Logger) *Flow {
	f := &Flow{
		videoID:     videoID,
		camera:      camera,
		player:      player,
		uploader:    uploader,
		log:         log.WithVideoID(videoID),
		state:       StateIdle,
		orientation: Portrait,
	}
	f.unsubscribe = player.Subscribe(f.handleEvent)
	return f
}

// OnStateChange registers fn to be called after every transition
func (f *Flow) OnStateChange(fn func(State)) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

// State returns the current state
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err returns the failure that moved the flow to error
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// FileURI returns the recorded take, set while reviewing
func (f *Flow) FileURI() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fileURI
}

// Saved returns the duette created by Save
func (f *Flow) Saved() *clients.Duette {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved
}

// Orientation returns the last reported device orientation
func (f *Flow) Orientation() Orientation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orientation
}

func (f *Flow) handleEvent(e Event) {
	switch ev := e.(type) {
	case PlaybackStatus:
		f.mu.Lock()
		f.status = ev
		f.mu.Unlock()
	case OrientationChanged:
		f.mu.Lock()
		f.orientation = ev.Orientation
		f.mu.Unlock()
	case PlaybackFailed:
		f.mu.Lock()
		recording := f.state == StateRecording
		f.mu.Unlock()
		f.fail(fmt.Errorf("playback: %w", ev.Err))
		if recording {
			f.stopCamera()
		}
	}
}

// transition moves from one of the from states to to. Must hold f.mu.
func (f *Flow) transition(op string, to State, from ...State) error {
	if f.closed {
		return ErrClosed
	}
	for _, s := range from {
		if f.state == s {
			f.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, op, f.state)
}

func (f *Flow) emit(s State) {
	f.log.Debug("recording state changed", "state", s)

	f.mu.Lock()
	listeners := slices.Clone(f.listeners)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// fail moves a recording or reviewing flow to error
func (f *Flow) fail(err error) {
	f.mu.Lock()
	if f.closed || (f.state != StateRecording && f.state != StateReviewing) {
		f.mu.Unlock()
		return
	}
	f.state = StateError
	f.err = err
	f.mu.Unlock()

	f.log.Warn("recording failed", "error", err)
	f.emit(StateError)
}

// Start begins recording and plays the reference video from the start.
// Only allowed when idle with the reference video loaded and not buffering.
func (f *Flow) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.state == StateIdle && (!f.status.Loaded || f.status.Buffering) {
		f.mu.Unlock()
		return ErrNotReady
	}
	if err := f.transition("start", StateRecording, StateIdle); err != nil {
		f.mu.Unlock()
		return err
	}
	done := make(chan struct{})
	f.recordDone = done
	f.mu.Unlock()
	f.emit(StateRecording)

	go func() {
		defer close(done)
		uri, err := f.camera.Record(ctx)
		f.finishRecording(uri, err)
	}()

	if err := f.player.PlayFromStart(ctx); err != nil {
		f.fail(fmt.Errorf("playback: %w", err))
		f.stopCamera()
		return err
	}
	return nil
}

// stopCamera stops the camera after a playback failure, the flow is already in error
func (f *Flow) stopCamera() {
	if err := f.camera.Stop(); err != nil {
		f.log.Warn("failed to stop camera", "error", err)
	}
}

func (f *Flow) finishRecording(uri string, err error) {
	if err != nil {
		f.fail(fmt.Errorf("camera: %w", err))
		return
	}

	f.mu.Lock()
	if f.closed || f.state != StateRecording {
		f.mu.Unlock()
		return
	}
	f.state = StateReviewing
	f.fileURI = uri
	f.mu.Unlock()
	f.emit(StateReviewing)
}

// Stop stops the camera and waits for the take to be finalized. It returns
// the failure when recording ended in error.
func (f *Flow) Stop(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.state != StateRecording {
		err := fmt.Errorf("%w: stop in state %s", ErrInvalidTransition, f.state)
		f.mu.Unlock()
		return err
	}
	done := f.recordDone
	f.mu.Unlock()

	if err := f.camera.Stop(); err != nil {
		f.fail(fmt.Errorf("camera: %w", err))
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if f.State() == StateError {
		return f.Err()
	}
	return nil
}

// Discard drops the reviewed take
func (f *Flow) Discard() error {
	f.mu.Lock()
	var err error
	if f.saving {
		err = fmt.Errorf("%w: discard while saving", ErrInvalidTransition)
	} else {
		err = f.transition("discard", StateDiscarded, StateReviewing)
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.emit(StateDiscarded)
	return nil
}

// Save uploads the reviewed take as a new duette. Only one save runs at a time.
func (f *Flow) Save(ctx context.Context) (*clients.Duette, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	if f.state != StateReviewing || f.saving {
		err := fmt.Errorf("%w: save in state %s", ErrInvalidTransition, f.state)
		if f.saving {
			err = fmt.Errorf("%w: save already in progress", ErrInvalidTransition)
		}
		f.mu.Unlock()
		return nil, err
	}
	f.saving = true
	uri := f.fileURI
	f.mu.Unlock()

	duette, err := f.uploader.Upload(ctx, f.videoID, uri)

	f.mu.Lock()
	f.saving = false
	f.mu.Unlock()

	if err != nil {
		f.fail(fmt.Errorf("upload: %w", err))
		return nil, err
	}

	f.mu.Lock()
	if err := f.transition("save", StateSaved, StateReviewing); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.saved = duette
	f.mu.Unlock()

	f.log.Info("duette saved", "duette_id", duette.ID, "object_key", duette.ObjectKey)
	f.emit(StateSaved)
	return duette, nil
}

// Acknowledge returns a finished or failed flow to idle
func (f *Flow) Acknowledge() error {
	f.mu.Lock()
	err := f.transition("acknowledge", StateIdle, StateError, StateDiscarded, StateSaved)
	if err == nil {
		f.fileURI = ""
		f.err = nil
		f.saved = nil
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.emit(StateIdle)
	return nil
}

// Cancel unloads the player, stops a running recording and closes the flow
func (f *Flow) Cancel(ctx context.Context) error {
	f.mu.Lock()
	recording := f.state == StateRecording
	done := f.recordDone
	f.closed = true
	f.mu.Unlock()

	var errs []error
	if err := f.player.Unload(ctx); err != nil {
		errs = append(errs, fmt.Errorf("unload player: %w", err))
	}
	if recording {
		if err := f.camera.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop camera: %w", err))
		}
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	f.Close()
	return errors.Join(errs...)
}

// Close stops listening to player events. It is safe to call more than once.
func (f *Flow) Close() {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		if f.unsubscribe != nil {
			f.unsubscribe()
		}
	})
}
