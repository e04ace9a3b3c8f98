package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kdimtricp/paintestimator/internal/models"
	"github.com/kdimtricp/paintestimator/internal/present"
	"github.com/kdimtricp/paintestimator/internal/view"
)

const DefaultMaxUploadSize = 60 << 20

func (app *App) currentView(w http.ResponseWriter, r *http.Request) (*view.View, bool) {
	v, ok := app.Views.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "View not found", http.StatusNotFound)
		return nil, false
	}
	return v, true
}

func (app *App) CreateViewHandler(w http.ResponseWriter, r *http.Request) {
	modeName := r.FormValue("mode")
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Mode string `json:"mode"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		modeName = body.Mode
	}

	mode, err := models.ParseMode(modeName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	v := app.Views.Create(mode)
	w.Header().Set("Location", "/views/"+v.ID)
	writeJSON(w, http.StatusCreated, v.Snapshot())
}

func (app *App) GetViewHandler(w http.ResponseWriter, r *http.Request) {
	v, ok := app.currentView(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

func (app *App) DeleteViewHandler(w http.ResponseWriter, r *http.Request) {
	if !app.Views.Delete(chi.URLParam(r, "id")) {
		http.Error(w, "View not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) ResetViewHandler(w http.ResponseWriter, r *http.Request) {
	v, ok := app.currentView(w, r)
	if !ok {
		return
	}
	v.Reset()
	writeJSON(w, http.StatusOK, v.Snapshot())
}

// SetFieldsHandler merges the JSON body over the view's current fields, so
// clients may send only what changed.
func (app *App) SetFieldsHandler(w http.ResponseWriter, r *http.Request) {
	v, ok := app.currentView(w, r)
	if !ok {
		return
	}

	fields := v.Selection().Fields
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&fields); err != nil {
		http.Error(w, "Invalid fields: "+err.Error(), http.StatusBadRequest)
		return
	}
	v.SetFields(fields)
	writeJSON(w, http.StatusOK, v.Snapshot())
}

func (app *App) AddFilesHandler(w http.ResponseWriter, r *http.Request) {
	v, ok := app.currentView(w, r)
	if !ok {
		return
	}

	maxSize := app.MaxUploadSize
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		http.Error(w, "Failed to get file", http.StatusBadRequest)
		return
	}

	files := make([]models.File, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			http.Error(w, "Failed to read file", http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, "Failed to read file", http.StatusBadRequest)
			return
		}
		files = append(files, models.NewFile(header.Filename, data, header.Header.Get("Content-Type")))
	}

	if err := v.AddFiles(files...); err != nil {
		app.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

func (app *App) RemoveFileHandler(w http.ResponseWriter, r *http.Request) {
	v, ok := app.currentView(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "Invalid file index", http.StatusBadRequest)
		return
	}
	if err := v.RemoveFile(index); err != nil {
		app.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

func (app *App) ClearFilesHandler(w http.ResponseWriter, r *http.Request) {
	v, ok := app.currentView(w, r)
	if !ok {
		return
	}
	v.ClearFiles()
	writeJSON(w, http.StatusOK, v.Snapshot())
}

// FileHandler streams one selected file back, from staging when it was
// staged and from memory otherwise. Range requests are honoured.
func (app *App) FileHandler(w http.ResponseWriter, r *http.Request) {
	v, ok := app.currentView(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "Invalid file index", http.StatusBadRequest)
		return
	}
	file, ok := v.File(index)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var content io.ReadSeeker = bytes.NewReader(file.Data)
	if file.StoredAs != "" && app.Storage != nil {
		f, err := app.Storage.OpenFile(file.StoredAs)
		if err != nil {
			app.logger().Error("failed to open staged file", zap.String("file", file.StoredAs), zap.Error(err))
			http.Error(w, "File not available", http.StatusNotFound)
			return
		}
		defer f.Close()
		content = f
	}

	if file.ContentType != "" {
		w.Header().Set("Content-Type", file.ContentType)
	}
	http.ServeContent(w, r, file.Name, time.Time{}, content)
}

// PreviewHandler serves the JPEG thumbnail for one selected file. 202 means
// the preview is still loading.
func (app *App) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	v, ok := app.currentView(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "Invalid file index", http.StatusBadRequest)
		return
	}

	p, ok := v.Preview(index)
	switch {
	case !ok:
		http.NotFound(w, r)
	case !p.Ready:
		w.WriteHeader(http.StatusAccepted)
	case len(p.Thumbnail) == 0:
		http.Error(w, "No preview available", http.StatusNotFound)
	default:
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(p.Thumbnail)))
		w.Write(p.Thumbnail)
	}
}

func (app *App) DismissNoticeHandler(w http.ResponseWriter, r *http.Request) {
	v, ok := app.currentView(w, r)
	if !ok {
		return
	}
	v.DismissNotice()
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	v, ok := app.currentView(w, r)
	if !ok {
		return
	}

	res, err := v.Submit(r.Context())
	if err != nil {
		app.renderError(w, r, err)
		return
	}

	app.renderResult(w, r, res, wantsHTML(r))
}

// ResultHandler renders the displayed result as an HTML fragment unless JSON
// is asked for.
func (app *App) ResultHandler(w http.ResponseWriter, r *http.Request) {
	v, ok := app.currentView(w, r)
	if !ok {
		return
	}
	res := v.Result()
	if res == nil {
		http.Error(w, "No result yet", http.StatusNotFound)
		return
	}
	asHTML := r.URL.Query().Get("format") != "json" && !strings.Contains(r.Header.Get("Accept"), "application/json")
	app.renderResult(w, r, *res, asHTML)
}

type resultResponse struct {
	Result  models.SubmissionResult `json:"result"`
	Summary present.Summary         `json:"summary"`
}

func (app *App) renderResult(w http.ResponseWriter, r *http.Request, res models.SubmissionResult, asHTML bool) {
	summary := present.Summarize(res)

	switch {
	case r.URL.Query().Get("format") == "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := present.Text(w, summary); err != nil {
			app.logger().Error("failed to render result", zap.Error(err))
		}
	case asHTML:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("HX-Trigger", "estimateReady")
		if err := present.HTML(w, summary); err != nil {
			app.logger().Error("failed to render result", zap.Error(err))
		}
	default:
		writeJSON(w, http.StatusOK, resultResponse{Result: res, Summary: summary})
	}
}

// EventsHandler streams the view's updates as server-sent events until the
// client goes away or the view is closed.
func (app *App) EventsHandler(w http.ResponseWriter, r *http.Request) {
	v, ok := app.currentView(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates, unsubscribe := v.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	clientGone := r.Context().Done()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}

			data, err := json.Marshal(update.Data)
			if err != nil {
				app.logger().Warn("failed to encode view update", zap.String("type", update.Type), zap.Error(err))
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", update.Type, data)
			flusher.Flush()

		case <-clientGone:
			return
		}
	}
}
