package preview

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Inspector reads video metadata with ffprobe, falling back to ffmpeg.
type Inspector struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
	logger      *zap.Logger
}

func NewInspector(logger *zap.Logger) (*Inspector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	// ffprobe is optional; Duration falls back to ffmpeg output.
	ffprobePath, _ := exec.LookPath("ffprobe")

	tempDir := filepath.Join(os.TempDir(), "paintestimator-frames")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	logger.Info("video inspector ready",
		zap.String("ffmpeg", ffmpegPath),
		zap.String("ffprobe", ffprobePath))

	return &Inspector{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		tempDir:     tempDir,
		logger:      logger,
	}, nil
}

func (p *Inspector) Duration(ctx context.Context, videoPath string) (time.Duration, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return 0, fmt.Errorf("video file not accessible: %w", err)
	}

	if p.ffprobePath != "" {
		cmd := exec.CommandContext(ctx, p.ffprobePath,
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			videoPath)

		var stdout bytes.Buffer
		cmd.Stdout = &stdout

		if err := cmd.Run(); err == nil {
			if seconds, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64); err == nil && seconds > 0 {
				return seconds2duration(seconds), nil
			}
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath, "-i", videoPath, "-f", "null", "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return parseFFmpegDuration(stderr.String())
}

// PosterFrame grabs one frame near the start of the video and returns it as
// a thumbnail.
func (p *Inspector) PosterFrame(ctx context.Context, videoPath string, size int) ([]byte, error) {
	tempFile := filepath.Join(p.tempDir, "poster_"+uuid.New().String()+".jpg")
	defer os.Remove(tempFile)

	args := []string{
		"-ss", "0.5",
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", "2",
		"-f", "mjpeg",
		tempFile,
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		p.logger.Debug("ffmpeg poster extraction failed",
			zap.String("path", videoPath),
			zap.String("stderr", stderr.String()))
		return nil, fmt.Errorf("failed to extract poster frame: %w", err)
	}

	img, err := imaging.Open(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to decode poster frame: %w", err)
	}
	if size <= 0 {
		size = DefaultSize
	}
	return encodeJPEG(fit(img, size))
}

func (p *Inspector) Cleanup() error {
	return os.RemoveAll(p.tempDir)
}

// parseFFmpegDuration reads the "Duration: HH:MM:SS.ss," line ffmpeg prints
// to stderr.
func parseFFmpegDuration(output string) (time.Duration, error) {
	const prefix = "Duration: "
	start := strings.Index(output, prefix)
	if start == -1 {
		return 0, fmt.Errorf("duration not found in ffmpeg output")
	}
	start += len(prefix)

	end := strings.Index(output[start:], ",")
	if end == -1 {
		return 0, fmt.Errorf("invalid duration format")
	}

	value := output[start : start+end]
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration format: %s", value)
	}

	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}

	return seconds2duration(hours*3600 + minutes*60 + seconds), nil
}

func seconds2duration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
