// Package device provides host-side image sources for the capture controller.
package device

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"faceattend/internal/apperror"
	"faceattend/internal/capture"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutputPlaceholder is replaced by the destination path in a camera command.
const OutputPlaceholder = "{output}"

// CommandCamera captures a frame by running an external program, e.g.
// "libcamera-still -n -o {output}" or "fswebcam --no-banner {output}".
// A run that exits cleanly without writing the file is treated as a cancel.
type CommandCamera struct {
	Command  string
	SpoolDir string
	logger   *zap.Logger
}

func NewCommandCamera(command, spoolDir string) *CommandCamera {
	if spoolDir == "" {
		spoolDir = os.TempDir()
	}
	return &CommandCamera{
		Command:  command,
		SpoolDir: spoolDir,
		logger:   zap.L().Named("device.camera"),
	}
}

func (c *CommandCamera) Capture(ctx context.Context) (capture.CapturedImage, error) {
	fields := strings.Fields(c.Command)
	if len(fields) == 0 {
		return capture.CapturedImage{}, apperror.New(apperror.CodeCaptureFailed, "camera command not configured", http.StatusServiceUnavailable)
	}
	if err := os.MkdirAll(c.SpoolDir, 0o755); err != nil {
		return capture.CapturedImage{}, fmt.Errorf("spool dir: %w", err)
	}

	out := filepath.Join(c.SpoolDir, "capture-"+uuid.NewString()+".jpg")
	args := make([]string, 0, len(fields))
	placed := false
	for _, f := range fields[1:] {
		if strings.Contains(f, OutputPlaceholder) {
			f = strings.ReplaceAll(f, OutputPlaceholder, out)
			placed = true
		}
		args = append(args, f)
	}
	if !placed {
		args = append(args, out)
	}

	cmd := exec.CommandContext(ctx, fields[0], args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		c.logger.Error("camera command failed", zap.String("command", fields[0]), zap.ByteString("output", output), zap.Error(err))
		return capture.CapturedImage{}, apperror.Wrap(fmt.Errorf("camera command: %w", err),
			apperror.CodeCaptureFailed, "camera command failed", http.StatusInternalServerError)
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(out)
		return capture.CapturedImage{}, apperror.ErrCanceled
	}
	return capture.NewCapturedImage("file://" + out), nil
}

// Discard removes a frame this camera wrote. Files outside the spool dir are left alone.
func (c *CommandCamera) Discard(img capture.CapturedImage) error {
	path := filepath.Clean(strings.TrimPrefix(img.URI, "file://"))
	if filepath.Dir(path) != filepath.Clean(c.SpoolDir) {
		return fmt.Errorf("discard %s: not in spool dir", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("discard %s: %w", path, err)
	}
	return nil
}
