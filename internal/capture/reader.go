package capture

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// FileReader reads local paths and file:// URIs.
type FileReader struct{}

func (FileReader) ReadImage(_ context.Context, uri string) ([]byte, error) {
	path := strings.TrimPrefix(uri, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return data, nil
}
