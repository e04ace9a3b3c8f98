package storage

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// SaveFile writes r under a fresh uuid name, keeping the original extension
// so tools that sniff by suffix still work.
func (ls *LocalStorage) SaveFile(r io.Reader, info FileInfo) (string, error) {
	filename := uuid.New().String() + extension(info)
	fullPath := filepath.Join(ls.basePath, filename)

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return filename, nil
}

func (ls *LocalStorage) OpenFile(name string) (io.ReadSeekCloser, error) {
	fullPath, err := ls.resolve(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (ls *LocalStorage) DeleteFile(name string) error {
	fullPath, err := ls.resolve(name)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (ls *LocalStorage) GetFilePath(name string) string {
	return filepath.Join(ls.basePath, filepath.Base(name))
}

func (ls *LocalStorage) resolve(name string) (string, error) {
	cleanPath := filepath.Clean(name)
	if strings.Contains(cleanPath, "..") || filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("invalid path")
	}
	return filepath.Join(ls.basePath, cleanPath), nil
}

func extension(info FileInfo) string {
	if ext := strings.ToLower(filepath.Ext(info.Filename)); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(info.ContentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
