package view

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kdimtricp/paintestimator/internal/models"
	"github.com/kdimtricp/paintestimator/internal/normalize"
	"github.com/kdimtricp/paintestimator/internal/payload"
	"github.com/kdimtricp/paintestimator/internal/preview"
	"github.com/kdimtricp/paintestimator/internal/storage"
	"github.com/kdimtricp/paintestimator/internal/validation"
)

var (
	ErrSubmitInFlight = errors.New("a submission is already in flight for this view")
	ErrFileIndex      = errors.New("file index out of range")
	ErrNoFiles        = errors.New("this mode does not take files")
	ErrTooManyFiles   = errors.New("too many files for this mode")
	ErrClosed         = errors.New("view is closed")
)

type Submitter interface {
	Submit(ctx context.Context, endpoint string, p payload.Payload) (interface{}, error)
}

type Previewer interface {
	Load(ctx context.Context, file models.File, path string) (preview.Result, error)
}

// Cache stores raw response bodies by payload fingerprint.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool, error)
	Set(ctx context.Context, key string, raw interface{}) error
}

type History interface {
	Record(ctx context.Context, viewID string, res models.SubmissionResult) error
}

// Deps are the collaborators shared by every view. Only Transport is
// required.
type Deps struct {
	Transport Submitter
	Previews  Previewer
	Storage   storage.Storage
	Cache     Cache
	History   History
	Logger    *zap.Logger
}

// slotKey identifies one preview load: the selection version produced by the
// mutation that added the file, and the file's offset within that mutation.
type slotKey struct {
	version uint64
	offset  int
}

type Preview struct {
	FileName  string        `json:"file_name"`
	Ready     bool          `json:"ready"`
	Thumbnail []byte        `json:"-"`
	Duration  time.Duration `json:"duration,omitempty"`
	Error     string        `json:"error,omitempty"`
	key       slotKey
	// done is closed when the slot's load finishes; nil when no load runs.
	done chan struct{}
}

const updateBuffer = 100

type Update struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// View owns one Selection and the result currently displayed for it. All
// state changes go through its methods; each one replaces the Selection,
// preview list or result wholesale under the view's mutex.
type View struct {
	ID        string
	CreatedAt time.Time

	deps   Deps
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	loads  sync.WaitGroup

	mu         sync.Mutex
	sel        models.Selection
	previews   []Preview
	result     *models.SubmissionResult
	notice     *Notice
	submitting bool
	closed     bool
	subs       map[int]chan Update
	nextSub    int
}

func New(mode models.Mode, deps Deps) *View {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()

	return &View{
		ID:        id,
		CreatedAt: time.Now(),
		deps:      deps,
		logger:    logger.With(zap.String("view", id), zap.String("mode", string(mode))),
		ctx:       ctx,
		cancel:    cancel,
		sel:       models.NewSelection(mode),
		previews:  []Preview{},
		subs:      make(map[int]chan Update),
	}
}

// Subscribe registers a listener for view updates. Every subscriber gets its
// own buffered channel; the returned func unregisters and closes it.
func (v *View) Subscribe() (<-chan Update, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan Update, updateBuffer)
	if v.closed {
		close(ch)
		return ch, func() {}
	}
	id := v.nextSub
	v.nextSub++
	v.subs[id] = ch

	return ch, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if c, ok := v.subs[id]; ok {
			delete(v.subs, id)
			close(c)
		}
	}
}

type Snapshot struct {
	ID         string                   `json:"id"`
	Selection  models.Selection         `json:"selection"`
	Previews   []Preview                `json:"previews"`
	Result     *models.SubmissionResult `json:"result,omitempty"`
	Notice     *Notice                  `json:"notice,omitempty"`
	Submitting bool                     `json:"submitting"`
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	return Snapshot{
		ID:         v.ID,
		Selection:  v.sel,
		Previews:   append([]Preview{}, v.previews...),
		Result:     v.result,
		Notice:     v.notice,
		Submitting: v.submitting,
	}
}

func (v *View) Selection() models.Selection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sel
}

func (v *View) Result() *models.SubmissionResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.result
}

func (v *View) Preview(index int) (Preview, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if index < 0 || index >= len(v.previews) {
		return Preview{}, false
	}
	return v.previews[index], true
}

// File returns the selected file at index, including where it is staged.
func (v *View) File(index int) (models.File, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if index < 0 || index >= len(v.sel.Files) {
		return models.File{}, false
	}
	return v.sel.Files[index], true
}

func (v *View) DismissNotice() {
	v.mu.Lock()
	v.notice = nil
	v.mu.Unlock()
}

func (v *View) SetFields(f models.Fields) {
	v.mu.Lock()
	v.sel = v.sel.WithFields(f)
	v.mu.Unlock()
}

// AddFiles attaches files to the selection. In single-file modes the new file
// replaces the current one, like re-picking in a file input. Each file gets
// its own preview load.
func (v *View) AddFiles(files ...models.File) error {
	if len(files) == 0 {
		return nil
	}
	mode := v.Selection().Mode
	if !mode.HasFiles() {
		return ErrNoFiles
	}
	_, max := mode.FileBounds()
	if len(files) > max {
		return ErrTooManyFiles
	}

	staged := v.stage(files)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		v.unstage(staged)
		return ErrClosed
	}

	var replaced []models.File
	if max == 1 {
		replaced = v.sel.Files
		v.sel = v.sel.ReplaceFiles(staged...)
		v.previews = []Preview{}
	} else {
		if len(v.sel.Files)+len(staged) > max {
			v.mu.Unlock()
			v.unstage(staged)
			return ErrTooManyFiles
		}
		v.sel = v.sel.AddFiles(staged...)
	}

	version := v.sel.Version
	slots := make([]Preview, len(staged))
	for i, f := range staged {
		slots[i] = Preview{FileName: f.Name, key: slotKey{version, i}}
		if v.deps.Previews != nil {
			slots[i].done = make(chan struct{})
			// Added under the lock so Close cannot already be waiting.
			v.loads.Add(1)
		}
	}
	v.previews = append(v.previews, slots...)
	v.mu.Unlock()

	v.unstage(replaced)
	for i, f := range staged {
		v.startLoad(slots[i], f)
	}
	return nil
}

func (v *View) RemoveFile(index int) error {
	v.mu.Lock()
	next, ok := v.sel.RemoveFile(index)
	if !ok {
		v.mu.Unlock()
		return ErrFileIndex
	}
	removed := v.sel.Files[index]
	v.sel = next
	v.previews = append(v.previews[:index:index], v.previews[index+1:]...)
	v.mu.Unlock()

	v.unstage([]models.File{removed})
	return nil
}

func (v *View) ClearFiles() {
	v.mu.Lock()
	removed := v.sel.Files
	v.sel = v.sel.ClearFiles()
	v.previews = []Preview{}
	v.mu.Unlock()

	v.unstage(removed)
}

// Reset discards the selection and any displayed result.
func (v *View) Reset() {
	v.mu.Lock()
	removed := v.sel.Files
	v.sel = v.sel.Reset()
	v.previews = []Preview{}
	v.result = nil
	v.notice = nil
	v.mu.Unlock()

	v.unstage(removed)
}

// Submit runs validation, payload building, transport and normalization for
// the current selection. A second call while one is running returns
// ErrSubmitInFlight without touching the network. Video submissions first
// wait for pending metadata loads so the duration limit is enforced. On
// failure the view keeps its selection and previous result; on success the
// result replaces the previous one and the selection is discarded.
func (v *View) Submit(ctx context.Context) (models.SubmissionResult, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return models.SubmissionResult{}, ErrClosed
	}
	if v.submitting {
		v.mu.Unlock()
		return models.SubmissionResult{}, ErrSubmitInFlight
	}
	v.submitting = true
	mode := v.sel.Mode
	v.mu.Unlock()

	if mode == models.ModeVideo {
		if err := v.awaitMetadata(ctx); err != nil {
			return models.SubmissionResult{}, v.failSubmit(err)
		}
	}

	v.mu.Lock()
	if v.closed {
		v.submitting = false
		v.mu.Unlock()
		return models.SubmissionResult{}, ErrClosed
	}
	sel := v.sel
	if out := validation.Validate(sel); !out.OK {
		err := out.Err()
		v.submitting = false
		v.setNoticeLocked(err)
		v.mu.Unlock()
		return models.SubmissionResult{}, err
	}

	p, err := payload.Build(sel)
	if err != nil {
		v.submitting = false
		v.setNoticeLocked(err)
		v.mu.Unlock()
		v.logger.Error("failed to build payload", zap.Error(err))
		return models.SubmissionResult{}, err
	}
	v.notice = nil
	v.mu.Unlock()

	v.publish(Update{Type: "submitting", Data: map[string]interface{}{"version": sel.Version}})

	raw, err := v.fetch(ctx, p)
	if err != nil {
		v.logger.Warn("submission failed", zap.Error(err))
		return models.SubmissionResult{}, v.failSubmit(err)
	}

	res := normalize.Normalize(sel.Mode, raw)

	v.mu.Lock()
	v.submitting = false
	v.result = &res
	var discarded []models.File
	// Edits made while the request was in flight are kept.
	if v.sel.Version == sel.Version {
		discarded = v.sel.Files
		v.sel = v.sel.Reset()
		v.previews = []Preview{}
	}
	v.mu.Unlock()

	v.unstage(discarded)
	v.publish(Update{Type: "result", Data: res})

	if v.deps.History != nil {
		if err := v.deps.History.Record(ctx, v.ID, res); err != nil {
			v.logger.Warn("failed to record estimate", zap.Error(err))
		}
	}

	return res, nil
}

func (v *View) failSubmit(err error) error {
	v.mu.Lock()
	v.submitting = false
	notice := v.setNoticeLocked(err)
	v.mu.Unlock()

	v.publish(Update{Type: "error", Data: notice})
	return err
}

// awaitMetadata blocks until every preview load of the current selection has
// finished. Loads for files removed meanwhile no longer hold a slot and are
// not waited for.
func (v *View) awaitMetadata(ctx context.Context) error {
	for {
		v.mu.Lock()
		var pending []chan struct{}
		for _, p := range v.previews {
			if !p.Ready && p.done != nil {
				pending = append(pending, p.done)
			}
		}
		v.mu.Unlock()

		if len(pending) == 0 {
			return nil
		}
		for _, done := range pending {
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (v *View) fetch(ctx context.Context, p payload.Payload) (interface{}, error) {
	key := "estimate:" + p.Fingerprint()

	if v.deps.Cache != nil {
		raw, ok, err := v.deps.Cache.Get(ctx, key)
		if err != nil {
			v.logger.Warn("cache lookup failed", zap.Error(err))
		} else if ok {
			v.logger.Debug("serving cached response", zap.String("key", key))
			return raw, nil
		}
	}

	if v.deps.Transport == nil {
		return nil, fmt.Errorf("no transport configured")
	}
	raw, err := v.deps.Transport.Submit(ctx, p.Endpoint, p)
	if err != nil {
		return nil, err
	}

	if v.deps.Cache != nil && raw != nil {
		if err := v.deps.Cache.Set(ctx, key, raw); err != nil {
			v.logger.Warn("cache store failed", zap.Error(err))
		}
	}
	return raw, nil
}

func (v *View) setNoticeLocked(err error) Notice {
	n := NoticeFor(err)
	v.notice = &n
	return n
}

func (v *View) startLoad(slot Preview, file models.File) {
	if slot.done == nil {
		return
	}

	path := ""
	if file.StoredAs != "" && v.deps.Storage != nil {
		path = v.deps.Storage.GetFilePath(file.StoredAs)
	}

	go func() {
		defer v.loads.Done()
		defer close(slot.done)
		res, err := v.deps.Previews.Load(v.ctx, file, path)
		v.completeLoad(slot.key, file, res, err)
	}()
}

// completeLoad applies a finished preview load if its slot still exists.
// Loads for files that were replaced, removed or cleared find no slot and
// are dropped.
func (v *View) completeLoad(key slotKey, file models.File, res preview.Result, err error) {
	v.mu.Lock()
	index := -1
	for i, p := range v.previews {
		if p.key == key {
			index = i
			break
		}
	}
	if index == -1 {
		v.mu.Unlock()
		v.logger.Debug("discarding stale preview", zap.String("file", file.Name))
		return
	}

	slot := v.previews[index]
	slot.Ready = true
	slot.Thumbnail = res.Thumbnail
	slot.Duration = res.Duration
	if err != nil && !errors.Is(err, preview.ErrNoPreview) {
		slot.Error = "Preview unavailable"
		v.logger.Debug("preview failed", zap.String("file", file.Name), zap.Error(err))
	}

	previews := append([]Preview{}, v.previews...)
	previews[index] = slot
	v.previews = previews

	var notice *Notice
	if res.Duration > 0 {
		if next, ok := v.sel.WithFileDuration(index, res.Duration); ok {
			v.sel = next
		}
		if out := validation.ValidateDuration(res.Duration); !out.OK {
			n := v.setNoticeLocked(out.Err())
			notice = &n
		}
	}
	v.mu.Unlock()

	v.publish(Update{Type: "preview", Data: map[string]interface{}{
		"index":     index,
		"file_name": slot.FileName,
		"duration":  slot.Duration.Seconds(),
		"error":     slot.Error,
	}})
	if notice != nil {
		v.publish(Update{Type: "error", Data: *notice})
	}
}

// WaitForPreviews blocks until every preview load started so far has
// finished.
func (v *View) WaitForPreviews() {
	v.loads.Wait()
}

// Close cancels outstanding loads, removes staged files and closes every
// subscriber channel.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	removed := v.sel.Files
	v.mu.Unlock()

	v.cancel()
	v.loads.Wait()
	v.unstage(removed)

	v.mu.Lock()
	for id, ch := range v.subs {
		delete(v.subs, id)
		close(ch)
	}
	v.mu.Unlock()
}

// publish never blocks; a subscriber that is not draining its channel
// misses the update.
func (v *View) publish(u Update) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	for id, ch := range v.subs {
		select {
		case ch <- u:
		default:
			v.logger.Debug("dropping view update", zap.String("type", u.Type), zap.Int("subscriber", id))
		}
	}
}

func (v *View) stage(files []models.File) []models.File {
	out := make([]models.File, len(files))
	copy(out, files)
	if v.deps.Storage == nil {
		return out
	}
	for i := range out {
		name, err := v.deps.Storage.SaveFile(bytes.NewReader(out[i].Data), storage.FileInfo{
			Filename:    out[i].Name,
			ContentType: out[i].ContentType,
			Size:        out[i].Size,
		})
		if err != nil {
			v.logger.Warn("failed to stage file", zap.String("file", out[i].Name), zap.Error(err))
			continue
		}
		out[i].StoredAs = name
	}
	return out
}

func (v *View) unstage(files []models.File) {
	if v.deps.Storage == nil {
		return
	}
	for _, f := range files {
		if f.StoredAs == "" {
			continue
		}
		if err := v.deps.Storage.DeleteFile(f.StoredAs); err != nil {
			v.logger.Debug("failed to remove staged file", zap.String("file", f.StoredAs), zap.Error(err))
		}
	}
}
