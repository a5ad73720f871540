package attachment

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// PathPicker picks a fixed local path. An empty path is a cancellation.
type PathPicker struct {
	Path string
}

func (p PathPicker) Pick(_ context.Context) (File, bool, error) {
	path := strings.TrimSpace(p.Path)
	if path == "" {
		return File{}, false, nil
	}
	return Describe(path)
}

// Describe stats a local file and detects its mime type.
func Describe(path string) (File, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, false, fmt.Errorf("%s is a directory", path)
	}
	mt, err := detectMimeType(path)
	if err != nil {
		return File{}, false, err
	}
	return File{
		URI:      path,
		MimeType: mt,
		Name:     filepath.Base(path),
		ByteSize: info.Size(),
	}, true, nil
}

func detectMimeType(path string) (string, error) {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		return mt, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return http.DetectContentType(head[:n]), nil
}
