package preview

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kdimtricp/paintestimator/internal/models"
)

type Result struct {
	Thumbnail []byte
	// Duration is zero for images and for videos whose duration could not be read.
	Duration time.Duration
}

// Loader produces previews for selected files. Video probing is skipped when
// no Inspector is configured.
type Loader struct {
	size   int
	inspector *Inspector
	logger *zap.Logger
}

func NewLoader(size int, inspector *Inspector, logger *zap.Logger) *Loader {
	if size <= 0 {
		size = DefaultSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{size: size, inspector: inspector, logger: logger}
}

// Load builds the preview for one file. path is where the file is staged on
// disk; when empty, video bytes are written to a temporary file for probing.
func (l *Loader) Load(ctx context.Context, file models.File, path string) (Result, error) {
	switch {
	case strings.HasPrefix(file.ContentType, "image/"):
		thumb, err := Thumbnail(ctx, file.Data, l.size)
		if err != nil {
			return Result{}, err
		}
		return Result{Thumbnail: thumb}, nil

	case strings.HasPrefix(file.ContentType, "video/"):
		return l.loadVideo(ctx, file, path)
	}

	return Result{}, ErrNoPreview
}

func (l *Loader) loadVideo(ctx context.Context, file models.File, path string) (Result, error) {
	if l.inspector == nil {
		return Result{}, ErrNoPreview
	}

	if path == "" {
		tmp, err := os.CreateTemp(l.inspector.tempDir, "video-*")
		if err != nil {
			return Result{}, fmt.Errorf("failed to stage video for probing: %w", err)
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(file.Data); err != nil {
			tmp.Close()
			return Result{}, fmt.Errorf("failed to stage video for probing: %w", err)
		}
		tmp.Close()
		path = tmp.Name()
	}

	duration, err := l.inspector.Duration(ctx, path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read video duration: %w", err)
	}

	poster, err := l.inspector.PosterFrame(ctx, path, l.size)
	if err != nil {
		l.logger.Debug("no poster frame", zap.String("file", file.Name), zap.Error(err))
	}

	return Result{Thumbnail: poster, Duration: duration}, nil
}
