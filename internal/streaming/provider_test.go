package streaming

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeEngine is an in-memory streaming.Engine recording lifecycle calls.
type fakeEngine struct {
	mu sync.Mutex

	registered map[string]bool
	picker     BasePicker
	notifier   Notifier

	startErr        error
	registerErr     error
	changePickerErr error

	started, paused, stopped, unregistered int
	callOrder                              []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{registered: make(map[string]bool), notifier: newFakeNotifier()}
}

func (e *fakeEngine) Contains(infohash string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registered[infohash]
}

func (e *fakeEngine) Register(ctx context.Context, t Torrent) error {
	e.mu.Lock()
	e.callOrder = append(e.callOrder, "register")
	e.mu.Unlock()
	if e.registerErr != nil {
		return e.registerErr
	}
	e.mu.Lock()
	e.registered["x"] = true
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) Unregister(ctx context.Context, t Torrent) error {
	e.mu.Lock()
	e.registered["x"] = false
	e.unregistered++
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) Start(ctx context.Context, t Torrent) error {
	if e.startErr != nil {
		return e.startErr
	}
	e.mu.Lock()
	e.started++
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) Pause(ctx context.Context, t Torrent) error {
	e.mu.Lock()
	e.paused++
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) Resume(ctx context.Context, t Torrent) error { return nil }

func (e *fakeEngine) Stop(ctx context.Context, t Torrent) error {
	e.mu.Lock()
	e.stopped++
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) ChangePicker(t Torrent, picker BasePicker) error {
	e.mu.Lock()
	e.callOrder = append(e.callOrder, "change_picker")
	e.mu.Unlock()
	if e.changePickerErr != nil {
		return e.changePickerErr
	}
	e.picker = picker
	return nil
}

func (e *fakeEngine) Notifier(t Torrent) Notifier { return e.notifier }

func newTestProvider(engine Engine) (*StreamProvider, *fakeTorrent) {
	tt := newFakeTorrent(1<<20, 20<<20)
	p := NewStreamProvider(engine, "deadbeef", tt, nil, newFakeBasePicker(), 16*1024, nil)
	return p, tt
}

func TestStreamProviderLifecycle(t *testing.T) {
	engine := newFakeEngine()
	p, _ := newTestProvider(engine)

	if p.Active() || p.Paused() {
		t.Fatal("new provider must start Inactive")
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !p.Active() || p.Paused() {
		t.Fatal("after Start, provider must be Active and not Paused")
	}

	if err := p.Pause(context.Background()); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if !p.Active() || !p.Paused() {
		t.Fatal("after Pause, provider must be Active+Paused")
	}

	if err := p.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !p.Active() || p.Paused() {
		t.Fatal("after Resume, provider must be Active and not Paused")
	}

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.Active() || p.Paused() {
		t.Fatal("after Stop, provider must be Inactive")
	}

	// Stop is terminal: a second Start must fail.
	err := p.Start(context.Background())
	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != KindInvalidState {
		t.Fatalf("Start after Stop = %v, want KindInvalidState", err)
	}
}

func TestStreamProviderStartRegistersBeforeChangingPicker(t *testing.T) {
	engine := newFakeEngine()
	p, _ := newTestProvider(engine)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if len(engine.callOrder) != 2 || engine.callOrder[0] != "register" || engine.callOrder[1] != "change_picker" {
		t.Fatalf("engine call order = %v, want [register change_picker] (ChangePicker requires a registered session)", engine.callOrder)
	}
}

func TestStreamProviderStartUnregistersOnChangePickerFailure(t *testing.T) {
	engine := newFakeEngine()
	engine.changePickerErr = errors.New("not registered")
	p, _ := newTestProvider(engine)

	err := p.Start(context.Background())
	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != KindConflict {
		t.Fatalf("Start with failing ChangePicker = %v, want KindConflict", err)
	}
	if engine.unregistered != 1 {
		t.Errorf("unregistered = %d, want 1 (rollback after ChangePicker failure)", engine.unregistered)
	}
}

func TestStreamProviderStartConflictsOnDuplicateInfohash(t *testing.T) {
	engine := newFakeEngine()
	engine.registered["deadbeef"] = true

	p, _ := newTestProvider(engine)
	err := p.Start(context.Background())

	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != KindConflict {
		t.Fatalf("Start with duplicate infohash = %v, want KindConflict", err)
	}
}

func TestStreamProviderPauseRequiresActive(t *testing.T) {
	engine := newFakeEngine()
	p, _ := newTestProvider(engine)

	err := p.Pause(context.Background())
	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != KindInvalidState {
		t.Fatalf("Pause on Inactive provider = %v, want KindInvalidState", err)
	}
}

func TestStreamProviderCreateStreamRejectsSecondStream(t *testing.T) {
	engine := newFakeEngine()
	p, tt := newTestProvider(engine)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	file := &fakeFile{path: "movie.mkv", offset: 0, length: 20 << 20}
	_ = tt

	s1, err := p.CreateStream(file)
	if err != nil {
		t.Fatalf("first CreateStream: %v", err)
	}

	_, err = p.CreateStream(file)
	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != KindInvalidState {
		t.Fatalf("second CreateStream = %v, want KindInvalidState", err)
	}

	s1.Dispose()

	// After disposing the first stream, a new one must be allowed.
	if _, err := p.CreateStream(file); err != nil {
		t.Fatalf("CreateStream after dispose: %v", err)
	}
}

func TestStreamProviderCreateStreamRejectsNilFile(t *testing.T) {
	engine := newFakeEngine()
	p, _ := newTestProvider(engine)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err := p.CreateStream(nil)
	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != KindInvalidArgument {
		t.Fatalf("CreateStream(nil) = %v, want KindInvalidArgument", err)
	}
}

func TestStreamProviderCreateStreamRejectsFileNotInTorrent(t *testing.T) {
	engine := newFakeEngine()
	tt := newFakeTorrent(1<<20, 20<<20)
	movie := &fakeFile{path: "movie.mkv", offset: 0, length: 20 << 20}
	p := NewStreamProvider(engine, "deadbeef", tt, []File{movie}, newFakeBasePicker(), 16*1024, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	foreign := &fakeFile{path: "other.mkv", offset: 0, length: 1 << 20}
	_, err := p.CreateStream(foreign)
	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != KindInvalidArgument {
		t.Fatalf("CreateStream(file not in torrent) = %v, want KindInvalidArgument", err)
	}

	if _, err := p.CreateStream(movie); err != nil {
		t.Fatalf("CreateStream(file in torrent): %v", err)
	}
}

func TestStreamProviderStopDisposesActiveStream(t *testing.T) {
	engine := newFakeEngine()
	p, _ := newTestProvider(engine)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	file := &fakeFile{path: "movie.mkv", offset: 0, length: 20 << 20}
	stream, err := p.CreateStream(file)
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// The stream must have been disposed as part of Stop.
	if err := stream.Seek(0); err == nil {
		t.Error("stream should be disposed after provider Stop")
	}
}
