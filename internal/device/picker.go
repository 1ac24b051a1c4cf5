package device

import (
	"context"
	"fmt"
	"os"

	"faceattend/internal/apperror"
	"faceattend/internal/capture"
)

// FilePick selects an existing file. An empty path means the user backed out.
type FilePick string

func (p FilePick) Pick(_ context.Context) (capture.CapturedImage, error) {
	path := string(p)
	if path == "" {
		return capture.CapturedImage{}, apperror.ErrCanceled
	}
	info, err := os.Stat(path)
	if err != nil {
		return capture.CapturedImage{}, fmt.Errorf("pick %s: %w", path, err)
	}
	if info.IsDir() {
		return capture.CapturedImage{}, fmt.Errorf("pick %s: is a directory", path)
	}
	return capture.NewCapturedImage("file://" + path), nil
}
