package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kdimtricp/paintestimator/internal/models"
	"github.com/kdimtricp/paintestimator/internal/payload"
	"github.com/kdimtricp/paintestimator/internal/preview"
	"github.com/kdimtricp/paintestimator/internal/storage"
	"github.com/kdimtricp/paintestimator/internal/transport"
	"github.com/kdimtricp/paintestimator/internal/validation"
)

type mockTransport struct {
	mu      sync.Mutex
	calls   int
	raw     interface{}
	err     error
	started chan struct{}
	release chan struct{}
}

func (m *mockTransport) Submit(ctx context.Context, endpoint string, p payload.Payload) (interface{}, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
	return m.raw, m.err
}

func (m *mockTransport) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// gatedPreviewer holds each load until its file name is released.
type gatedPreviewer struct {
	mu        sync.Mutex
	gates     map[string]chan struct{}
	durations map[string]time.Duration
	open      bool
}

func (p *gatedPreviewer) gate(name string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gates == nil {
		p.gates = make(map[string]chan struct{})
	}
	g, ok := p.gates[name]
	if !ok {
		g = make(chan struct{})
		p.gates[name] = g
	}
	return g
}

func (p *gatedPreviewer) release(name string) {
	close(p.gate(name))
}

func (p *gatedPreviewer) Load(ctx context.Context, file models.File, path string) (preview.Result, error) {
	if !p.open {
		select {
		case <-p.gate(file.Name):
		case <-ctx.Done():
			return preview.Result{}, ctx.Err()
		}
	}
	return preview.Result{Thumbnail: []byte(file.Name), Duration: p.durations[file.Name]}, nil
}

type mockCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
}

func (c *mockCache) Get(ctx context.Context, key string) (interface{}, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	return raw, ok, nil
}

func (c *mockCache) Set(ctx context.Context, key string, raw interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]interface{})
	}
	c.entries[key] = raw
	return nil
}

type mockHistory struct {
	mu      sync.Mutex
	records []models.SubmissionResult
}

func (h *mockHistory) Record(ctx context.Context, viewID string, res models.SubmissionResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, res)
	return nil
}

func image(name string) models.File {
	return models.File{Name: name, ContentType: "image/jpeg", Size: 1024, Data: []byte(name)}
}

func successBody() interface{} {
	return map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"area_calculation": map[string]interface{}{"paintable_area": 320.0},
			"cost_breakdown":   map[string]interface{}{"total_cost": 2500.0},
		},
	}
}

func TestStalePreviewIsDiscarded(t *testing.T) {
	orders := []struct {
		name  string
		first string
	}{
		{"stale load resolves last", "b.jpg"},
		{"stale load resolves first", "a.jpg"},
	}

	for _, tt := range orders {
		t.Run(tt.name, func(t *testing.T) {
			previews := &gatedPreviewer{}
			v := New(models.ModeSingleImage, Deps{Transport: &mockTransport{}, Previews: previews})
			defer v.Close()

			if err := v.AddFiles(image("a.jpg")); err != nil {
				t.Fatalf("AddFiles failed: %v", err)
			}
			v.ClearFiles()
			if err := v.AddFiles(image("b.jpg")); err != nil {
				t.Fatalf("AddFiles failed: %v", err)
			}

			second := "a.jpg"
			if tt.first == "a.jpg" {
				second = "b.jpg"
			}
			previews.release(tt.first)
			previews.release(second)
			v.WaitForPreviews()

			p, ok := v.Preview(0)
			if !ok {
				t.Fatal("expected a preview slot")
			}
			if string(p.Thumbnail) != "b.jpg" || p.FileName != "b.jpg" {
				t.Errorf("displayed preview = %q (%s), want b.jpg", p.Thumbnail, p.FileName)
			}
			if _, ok := v.Preview(1); ok {
				t.Error("stale preview added an extra slot")
			}
		})
	}
}

func TestPreviewOrderFollowsSelection(t *testing.T) {
	previews := &gatedPreviewer{}
	v := New(models.ModeMultiImage, Deps{Transport: &mockTransport{}, Previews: previews})
	defer v.Close()

	if err := v.AddFiles(image("1.jpg"), image("2.jpg")); err != nil {
		t.Fatalf("AddFiles failed: %v", err)
	}
	if err := v.AddFiles(image("3.jpg")); err != nil {
		t.Fatalf("AddFiles failed: %v", err)
	}

	previews.release("3.jpg")
	previews.release("1.jpg")
	previews.release("2.jpg")
	v.WaitForPreviews()

	for i, want := range []string{"1.jpg", "2.jpg", "3.jpg"} {
		p, ok := v.Preview(i)
		if !ok || !p.Ready || string(p.Thumbnail) != want {
			t.Errorf("preview %d = %q ready=%v, want %s", i, p.Thumbnail, p.Ready, want)
		}
	}
}

func TestRemoveFileDropsPendingPreview(t *testing.T) {
	previews := &gatedPreviewer{}
	v := New(models.ModeMultiImage, Deps{Transport: &mockTransport{}, Previews: previews})
	defer v.Close()

	v.AddFiles(image("1.jpg"), image("2.jpg"), image("3.jpg"))
	if err := v.RemoveFile(0); err != nil {
		t.Fatalf("RemoveFile failed: %v", err)
	}
	if err := v.RemoveFile(7); !errors.Is(err, ErrFileIndex) {
		t.Errorf("expected ErrFileIndex, got %v", err)
	}

	previews.release("1.jpg")
	previews.release("2.jpg")
	previews.release("3.jpg")
	v.WaitForPreviews()

	snap := v.Snapshot()
	if len(snap.Selection.Files) != 2 || len(snap.Previews) != 2 {
		t.Fatalf("files=%d previews=%d, want 2 each", len(snap.Selection.Files), len(snap.Previews))
	}
	if string(snap.Previews[0].Thumbnail) != "2.jpg" || string(snap.Previews[1].Thumbnail) != "3.jpg" {
		t.Errorf("previews = %q, %q", snap.Previews[0].Thumbnail, snap.Previews[1].Thumbnail)
	}
}

func TestAddFilesBounds(t *testing.T) {
	manual := New(models.ModeManual, Deps{})
	defer manual.Close()
	if err := manual.AddFiles(image("a.jpg")); !errors.Is(err, ErrNoFiles) {
		t.Errorf("manual: expected ErrNoFiles, got %v", err)
	}

	multi := New(models.ModeMultiImage, Deps{})
	defer multi.Close()
	multi.AddFiles(image("1.jpg"), image("2.jpg"), image("3.jpg"))
	if err := multi.AddFiles(image("4.jpg"), image("5.jpg")); !errors.Is(err, ErrTooManyFiles) {
		t.Errorf("multi: expected ErrTooManyFiles, got %v", err)
	}

	single := New(models.ModeSingleImage, Deps{})
	defer single.Close()
	single.AddFiles(image("a.jpg"))
	single.AddFiles(image("b.jpg"))
	if files := single.Selection().Files; len(files) != 1 || files[0].Name != "b.jpg" {
		t.Errorf("single mode should replace the file, got %+v", files)
	}
}

func TestSubmitInFlightMakesOneCall(t *testing.T) {
	tr := &mockTransport{
		raw:     successBody(),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	v := New(models.ModeSingleImage, Deps{Transport: tr})
	defer v.Close()
	v.AddFiles(image("room.jpg"))

	done := make(chan error, 1)
	go func() {
		_, err := v.Submit(context.Background())
		done <- err
	}()

	<-tr.started
	if !v.Snapshot().Submitting {
		t.Error("expected view to report submitting")
	}
	if _, err := v.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("second submit: expected ErrSubmitInFlight, got %v", err)
	}

	close(tr.release)
	if err := <-done; err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if tr.Calls() != 1 {
		t.Errorf("transport calls = %d, want 1", tr.Calls())
	}
}

func TestSubmitSuccessReplacesResultAndDiscardsSelection(t *testing.T) {
	tr := &mockTransport{raw: successBody()}
	history := &mockHistory{}
	v := New(models.ModeSingleImage, Deps{Transport: tr, History: history})
	defer v.Close()
	updates, unsubscribe := v.Subscribe()
	defer unsubscribe()
	v.AddFiles(image("room.jpg"))
	before := v.Selection().Version

	res, err := v.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.PaintableAreaSqFt.Value != 320 || res.TotalCost.Value != 2500 {
		t.Errorf("unexpected result: %+v", res)
	}

	snap := v.Snapshot()
	if snap.Result == nil || snap.Result.TotalCost.Value != 2500 {
		t.Errorf("result not stored: %+v", snap.Result)
	}
	if len(snap.Selection.Files) != 0 || snap.Selection.Version <= before {
		t.Errorf("selection not discarded: %+v", snap.Selection)
	}
	if len(history.records) != 1 {
		t.Errorf("history records = %d, want 1", len(history.records))
	}

	select {
	case u := <-updates:
		if u.Type != "submitting" {
			t.Errorf("first update = %s, want submitting", u.Type)
		}
	default:
		t.Error("expected a submitting update")
	}
	select {
	case u := <-updates:
		if u.Type != "result" {
			t.Errorf("second update = %s, want result", u.Type)
		}
	default:
		t.Error("expected a result update")
	}
}

func TestSubmitErrorRestoresState(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class string
	}{
		{"http", &transport.HTTPError{Status: 500, Message: "Video estimation failed"}, ClassHTTP},
		{"network", &transport.NetworkError{Endpoint: "/estimate/cv/single-room", Err: context.DeadlineExceeded}, ClassNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &mockTransport{raw: successBody()}
			v := New(models.ModeSingleImage, Deps{Transport: tr})
			defer v.Close()

			v.AddFiles(image("room.jpg"))
			if _, err := v.Submit(context.Background()); err != nil {
				t.Fatalf("first submit failed: %v", err)
			}
			previous := v.Result()

			v.AddFiles(image("second.jpg"))
			sel := v.Selection()
			tr.err = tt.err

			if _, err := v.Submit(context.Background()); err == nil {
				t.Fatal("expected error")
			}

			snap := v.Snapshot()
			if snap.Submitting {
				t.Error("submit control should be re-enabled")
			}
			if snap.Result != previous {
				t.Error("previous result should remain displayed")
			}
			if snap.Selection.Version != sel.Version || len(snap.Selection.Files) != 1 {
				t.Errorf("selection changed on failure: %+v", snap.Selection)
			}
			if snap.Notice == nil || snap.Notice.Class != tt.class {
				t.Errorf("notice = %+v, want class %s", snap.Notice, tt.class)
			}
		})
	}
}

func TestSubmitValidationNeverCallsTransport(t *testing.T) {
	tr := &mockTransport{raw: successBody()}
	v := New(models.ModeMultiImage, Deps{Transport: tr})
	defer v.Close()
	v.AddFiles(image("only.jpg"))

	_, err := v.Submit(context.Background())
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if tr.Calls() != 0 {
		t.Errorf("transport calls = %d, want 0", tr.Calls())
	}
	if n := v.Snapshot().Notice; n == nil || n.Class != ClassValidation {
		t.Errorf("notice = %+v", n)
	}
}

func TestSubmitUsesCache(t *testing.T) {
	tr := &mockTransport{raw: successBody()}
	cache := &mockCache{}
	v := New(models.ModeSingleImage, Deps{Transport: tr, Cache: cache})
	defer v.Close()

	for i := 0; i < 2; i++ {
		v.AddFiles(image("room.jpg"))
		res, err := v.Submit(context.Background())
		if err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
		if res.TotalCost.Value != 2500 {
			t.Errorf("submit %d: total cost = %v", i, res.TotalCost.Value)
		}
	}

	if tr.Calls() != 1 {
		t.Errorf("transport calls = %d, want 1 (second served from cache)", tr.Calls())
	}
}

func TestVideoDurationLimit(t *testing.T) {
	previews := &gatedPreviewer{open: true, durations: map[string]time.Duration{"long.mp4": 45 * time.Second}}
	tr := &mockTransport{raw: successBody()}
	v := New(models.ModeVideo, Deps{Transport: tr, Previews: previews})
	defer v.Close()

	v.AddFiles(models.File{Name: "long.mp4", ContentType: "video/mp4", Size: 2048})
	v.WaitForPreviews()

	snap := v.Snapshot()
	if snap.Selection.Files[0].Duration != 45*time.Second {
		t.Errorf("duration not recorded: %v", snap.Selection.Files[0].Duration)
	}
	if snap.Notice == nil || snap.Notice.Class != ClassValidation {
		t.Errorf("expected duration notice, got %+v", snap.Notice)
	}

	if _, err := v.Submit(context.Background()); err == nil {
		t.Error("expected submit to fail for a long video")
	}
	if tr.Calls() != 0 {
		t.Errorf("transport calls = %d, want 0", tr.Calls())
	}
}

func waitSubmitting(t *testing.T, v *View) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !v.Snapshot().Submitting {
		select {
		case <-deadline:
			t.Fatal("submit never started")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestVideoSubmitWaitsForDuration(t *testing.T) {
	previews := &gatedPreviewer{durations: map[string]time.Duration{"long.mp4": 60 * time.Second}}
	tr := &mockTransport{raw: successBody()}
	v := New(models.ModeVideo, Deps{Transport: tr, Previews: previews})
	defer v.Close()

	v.AddFiles(models.File{Name: "long.mp4", ContentType: "video/mp4", Size: 2048})

	errc := make(chan error, 1)
	go func() {
		_, err := v.Submit(context.Background())
		errc <- err
	}()
	waitSubmitting(t, v)
	previews.release("long.mp4")

	var verr *validation.Error
	if err := <-errc; !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if tr.Calls() != 0 {
		t.Errorf("transport calls = %d, want 0", tr.Calls())
	}
	if v.Snapshot().Submitting {
		t.Error("submit control should be re-enabled")
	}
}

func TestVideoSubmitCancelledWhileWaiting(t *testing.T) {
	previews := &gatedPreviewer{}
	tr := &mockTransport{raw: successBody()}
	v := New(models.ModeVideo, Deps{Transport: tr, Previews: previews})
	defer v.Close()

	v.AddFiles(models.File{Name: "clip.mp4", ContentType: "video/mp4", Size: 2048})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := v.Submit(ctx)
		errc <- err
	}()
	waitSubmitting(t, v)
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if tr.Calls() != 0 {
		t.Errorf("transport calls = %d, want 0", tr.Calls())
	}
	if snap := v.Snapshot(); snap.Submitting || len(snap.Selection.Files) != 1 {
		t.Errorf("unexpected state after cancel: %+v", snap)
	}
}

func TestDurationDuringSubmitStillDiscardsSelection(t *testing.T) {
	previews := &gatedPreviewer{durations: map[string]time.Duration{"room.jpg": 10 * time.Second}}
	tr := &mockTransport{raw: successBody(), started: make(chan struct{}), release: make(chan struct{})}
	v := New(models.ModeSingleImage, Deps{Transport: tr, Previews: previews})
	defer v.Close()

	v.AddFiles(image("room.jpg"))

	errc := make(chan error, 1)
	go func() {
		_, err := v.Submit(context.Background())
		errc <- err
	}()
	<-tr.started
	previews.release("room.jpg")
	v.WaitForPreviews()
	close(tr.release)

	if err := <-errc; err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if files := v.Selection().Files; len(files) != 0 {
		t.Errorf("selection not discarded: %d files remain", len(files))
	}
}

func TestUpdatesFanOut(t *testing.T) {
	v := New(models.ModeSingleImage, Deps{Transport: &mockTransport{raw: successBody()}})
	defer v.Close()

	first, unsubscribeFirst := v.Subscribe()
	second, unsubscribeSecond := v.Subscribe()
	defer unsubscribeSecond()

	v.AddFiles(image("room.jpg"))
	if _, err := v.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	for name, ch := range map[string]<-chan Update{"first": first, "second": second} {
		var types []string
		for len(ch) > 0 {
			types = append(types, (<-ch).Type)
		}
		if len(types) != 2 || types[0] != "submitting" || types[1] != "result" {
			t.Errorf("%s subscriber got %v", name, types)
		}
	}

	unsubscribeFirst()
	if _, open := <-first; open {
		t.Error("unsubscribed channel should be closed")
	}
	unsubscribeFirst()
}

func TestCloseWhileAddingFiles(t *testing.T) {
	for i := 0; i < 50; i++ {
		v := New(models.ModeMultiImage, Deps{Transport: &mockTransport{}, Previews: &gatedPreviewer{open: true}})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := v.AddFiles(image("a.jpg"), image("b.jpg")); err != nil && !errors.Is(err, ErrClosed) {
				t.Errorf("AddFiles: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			v.Close()
		}()
		wg.Wait()

		if err := v.AddFiles(image("c.jpg")); !errors.Is(err, ErrClosed) {
			t.Fatalf("AddFiles after Close = %v, want ErrClosed", err)
		}
		v.WaitForPreviews()
	}
}

func mustSubscribe(v *View) <-chan Update {
	ch, _ := v.Subscribe()
	return ch
}

func TestStagedFilesAreRemoved(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	v := New(models.ModeSingleImage, Deps{Transport: &mockTransport{raw: successBody()}, Storage: store})
	defer v.Close()

	v.AddFiles(image("room.jpg"))
	staged := v.Selection().Files[0].StoredAs
	if staged == "" {
		t.Fatal("file was not staged")
	}
	if _, err := store.OpenFile(staged); err != nil {
		t.Fatalf("staged file missing: %v", err)
	}

	if _, err := v.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := store.OpenFile(staged); err == nil {
		t.Error("staged file should be removed once the selection is discarded")
	}
}

func TestManager(t *testing.T) {
	m := NewManager(Deps{Transport: &mockTransport{}})
	defer m.Close()

	v := m.Create(models.ModeVideo)
	updates, _ := v.Subscribe()
	got, ok := m.Get(v.ID)
	if !ok || got != v {
		t.Fatal("view not registered")
	}

	if !m.Delete(v.ID) {
		t.Error("expected delete to succeed")
	}
	if _, ok := m.Get(v.ID); ok {
		t.Error("view still registered after delete")
	}
	if _, open := <-updates; open {
		t.Error("updates channel should be closed")
	}
	if _, open := <-mustSubscribe(v); open {
		t.Error("subscribing to a closed view should yield a closed channel")
	}

	m.Create(models.ModeManual)
	if n := m.Expire(-time.Second); n != 1 {
		t.Errorf("expired %d views, want 1", n)
	}
}
