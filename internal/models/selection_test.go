package models

import "testing"

func TestSelectionMutationsReplace(t *testing.T) {
	sel := NewSelection(ModeMultiImage)
	a := File{Name: "a.jpg", ContentType: "image/jpeg"}
	b := File{Name: "b.jpg", ContentType: "image/jpeg"}

	withA := sel.AddFiles(a)
	withAB := withA.AddFiles(b)

	if len(sel.Files) != 0 {
		t.Errorf("original selection modified: %d files", len(sel.Files))
	}
	if len(withA.Files) != 1 {
		t.Errorf("expected 1 file, got %d", len(withA.Files))
	}
	if withAB.Version != sel.Version+2 {
		t.Errorf("expected version %d, got %d", sel.Version+2, withAB.Version)
	}

	removed, ok := withAB.RemoveFile(0)
	if !ok {
		t.Fatal("expected removal to succeed")
	}
	if removed.Files[0].Name != "b.jpg" {
		t.Errorf("expected b.jpg to remain, got %s", removed.Files[0].Name)
	}
	if withAB.Files[0].Name != "a.jpg" {
		t.Errorf("source selection changed by RemoveFile: %s", withAB.Files[0].Name)
	}

	if _, ok := withAB.RemoveFile(5); ok {
		t.Error("expected out of range removal to fail")
	}
}

func TestSelectionResetKeepsVersionIncreasing(t *testing.T) {
	sel := NewSelection(ModeVideo).AddFiles(File{Name: "walk.mp4"})
	reset := sel.Reset()

	if reset.Version <= sel.Version {
		t.Errorf("expected version to increase, got %d after %d", reset.Version, sel.Version)
	}
	if reset.ID == sel.ID {
		t.Error("expected a fresh selection id")
	}
	if len(reset.Files) != 0 || reset.Mode != ModeVideo {
		t.Errorf("unexpected reset selection: %+v", reset)
	}
}

func TestModeTable(t *testing.T) {
	tests := []struct {
		mode     Mode
		min, max int
		field    string
		endpoint string
	}{
		{ModeManual, 0, 0, "", "/estimate/manual"},
		{ModeManualRooms, 0, 0, "", "/estimate/manual/multi-room"},
		{ModeSingleImage, 1, 1, "image", "/estimate/cv/single-room"},
		{ModeMultiImage, 2, 4, "images", "/estimate/cv/multi-room"},
		{ModeVideo, 1, 1, "video", "/estimate/cv/video"},
		{ModeBlueprint, 1, 1, "image", "/estimate/floorplan"},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			min, max := tt.mode.FileBounds()
			if min != tt.min || max != tt.max {
				t.Errorf("bounds = %d..%d, want %d..%d", min, max, tt.min, tt.max)
			}
			if tt.mode.FileField() != tt.field {
				t.Errorf("field = %q, want %q", tt.mode.FileField(), tt.field)
			}
			if tt.mode.Endpoint() != tt.endpoint {
				t.Errorf("endpoint = %q, want %q", tt.mode.Endpoint(), tt.endpoint)
			}
		})
	}

	if _, err := ParseMode("panorama"); err == nil {
		t.Error("expected unknown mode to fail")
	}
}

func TestSelectionWithFileDuration(t *testing.T) {
	sel := NewSelection(ModeVideo).AddFiles(File{Name: "walk.mp4", ContentType: "video/mp4"})

	updated, ok := sel.WithFileDuration(0, 12_000_000_000)
	if !ok {
		t.Fatal("expected duration update to succeed")
	}
	if updated.Files[0].Duration.Seconds() != 12 {
		t.Errorf("duration = %v", updated.Files[0].Duration)
	}
	if sel.Files[0].Duration != 0 {
		t.Error("source selection changed")
	}
	if updated.Version != sel.Version {
		t.Errorf("metadata update changed version: %d, want %d", updated.Version, sel.Version)
	}
	if _, ok := sel.WithFileDuration(3, 1); ok {
		t.Error("expected out of range update to fail")
	}
}
