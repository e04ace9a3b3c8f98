package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kdimtricp/paintestimator/internal/payload"
)

func newTestClient(url string) *Client {
	return NewClient(Config{BaseURL: url + "/api/v1", Timeout: 5 * time.Second}, nil)
}

func TestSubmitJSON(t *testing.T) {
	var gotPath, gotType string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"total_cost":1234.5},"message":"ok"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	p := payload.Payload{Kind: payload.KindJSON, JSON: json.RawMessage(`{"room":{"length":10}}`)}

	raw, err := client.Submit(context.Background(), "/estimate/manual", p)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if gotPath != "/api/v1/estimate/manual" {
		t.Errorf("path = %q", gotPath)
	}
	if gotType != "application/json" {
		t.Errorf("content type = %q", gotType)
	}
	if room, ok := gotBody["room"].(map[string]interface{}); !ok || room["length"] != 10.0 {
		t.Errorf("unexpected request body: %v", gotBody)
	}

	body, ok := raw.(map[string]interface{})
	if !ok {
		t.Fatalf("expected object body, got %T", raw)
	}
	if body["message"] != "ok" {
		t.Errorf("body returned modified: %v", body)
	}
}

func TestSubmitMultipart(t *testing.T) {
	type received struct {
		files    []string
		contents []string
		roomData string
	}
	got := make(chan received, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var rec received
		for _, fh := range r.MultipartForm.File["images"] {
			rec.files = append(rec.files, fh.Filename)
			f, _ := fh.Open()
			data, _ := io.ReadAll(f)
			f.Close()
			rec.contents = append(rec.contents, string(data))
		}
		rec.roomData = r.FormValue("room_data")
		got <- rec
		w.Write([]byte(`{"data":{"rooms":[]}}`))
	}))
	defer server.Close()

	p := payload.Payload{
		Kind: payload.KindMultipart,
		Files: []payload.FilePart{
			{Field: "images", FileName: "a.jpg", ContentType: "image/jpeg", Data: []byte("first")},
			{Field: "images", FileName: "b.jpg", ContentType: "image/jpeg", Data: []byte("second")},
		},
		Form: []payload.FormValue{{Key: "room_data", Value: `[{"room_name":"Wall 1"}]`}},
	}

	if _, err := newTestClient(server.URL).Submit(context.Background(), "/estimate/cv/multi-room", p); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	rec := <-got
	if len(rec.files) != 2 || rec.files[0] != "a.jpg" || rec.files[1] != "b.jpg" {
		t.Errorf("unexpected files: %v", rec.files)
	}
	if len(rec.contents) != 2 || rec.contents[1] != "second" {
		t.Errorf("unexpected contents: %v", rec.contents)
	}
	if rec.roomData != `[{"room_name":"Wall 1"}]` {
		t.Errorf("room_data = %q", rec.roomData)
	}
}

func TestSubmitHTTPError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"detail string", http.StatusBadRequest, `{"detail":"Ceiling height must be between 7 and 20 feet"}`, "Ceiling height must be between 7 and 20 feet"},
		{"envelope message", http.StatusInternalServerError, `{"success":false,"message":"Internal server error","detail":"boom"}`, "Internal server error"},
		{"validation list", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body"],"msg":"field required"}]}`, "field required"},
		{"no body", http.StatusBadGateway, ``, "Request failed: Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := payload.Payload{Kind: payload.KindJSON, JSON: json.RawMessage(`{}`)}
			_, err := newTestClient(server.URL).Submit(context.Background(), "/estimate/manual", p)

			var herr *HTTPError
			if !errors.As(err, &herr) {
				t.Fatalf("expected HTTPError, got %v", err)
			}
			if herr.Status != tt.status {
				t.Errorf("status = %d, want %d", herr.Status, tt.status)
			}
			if herr.Message != tt.message {
				t.Errorf("message = %q, want %q", herr.Message, tt.message)
			}
		})
	}
}

func TestSubmitNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p := payload.Payload{Kind: payload.KindJSON, JSON: json.RawMessage(`{}`)}
	_, err := newTestClient(url).Submit(context.Background(), "/estimate/manual", p)

	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestSubmitContextCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := payload.Payload{Kind: payload.KindJSON, JSON: json.RawMessage(`{}`)}
	_, err := newTestClient(server.URL).Submit(ctx, "/estimate/manual", p)

	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NetworkError for cancelled context, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","version":"1.0.0","models_loaded":{"yolo":true}}`))
	}))
	defer server.Close()

	status, err := newTestClient(server.URL).Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if status.Status != "healthy" || !status.ModelsLoaded["yolo"] {
		t.Errorf("unexpected status: %+v", status)
	}
}
