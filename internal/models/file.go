package models

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// NewFile builds a File from raw bytes. Browsers and CLIs often send
// application/octet-stream, so the type falls back to the extension and then
// to content sniffing.
func NewFile(name string, data []byte, contentType string) File {
	return File{
		Name:        name,
		ContentType: resolveContentType(name, data, contentType),
		Size:        int64(len(data)),
		Data:        data,
	}
}

func resolveContentType(name string, data []byte, declared string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			if i := strings.Index(byExt, ";"); i >= 0 {
				byExt = byExt[:i]
			}
			return byExt
		}
	}

	if len(data) > 0 {
		sniffed := http.DetectContentType(data)
		if i := strings.Index(sniffed, ";"); i >= 0 {
			sniffed = sniffed[:i]
		}
		return sniffed
	}

	return "application/octet-stream"
}
