package storage

import (
	"io"
)

type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// Storage stages uploaded selection files so external tools such as ffprobe
// can read them by path.
type Storage interface {
	SaveFile(r io.Reader, info FileInfo) (string, error)
	OpenFile(name string) (io.ReadSeekCloser, error)
	DeleteFile(name string) error
	GetFilePath(name string) string
}
