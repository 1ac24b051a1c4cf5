package capture_test

import (
	"context"
	"sync"
	"time"

	"faceattend/internal/capture"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	calls    []capture.SubmissionRequest
	submitFn func(ctx context.Context, req capture.SubmissionRequest) (capture.SubmissionResult, error)
}

func (f *fakeSubmitter) Submit(ctx context.Context, req capture.SubmissionRequest) (capture.SubmissionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.submitFn(ctx, req)
}

func (f *fakeSubmitter) Calls() []capture.SubmissionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capture.SubmissionRequest(nil), f.calls...)
}

type fakeCamera struct {
	captureFn func(ctx context.Context) (capture.CapturedImage, error)
	calls     int
}

func (f *fakeCamera) Capture(ctx context.Context) (capture.CapturedImage, error) {
	f.calls++
	return f.captureFn(ctx)
}

// spoolCamera also records which frames were handed back for removal.
type spoolCamera struct {
	fakeCamera
	discarded []string
}

func (s *spoolCamera) Discard(img capture.CapturedImage) error {
	s.discarded = append(s.discarded, img.URI)
	return nil
}

type pickerFunc func(ctx context.Context) (capture.CapturedImage, error)

func (p pickerFunc) Pick(ctx context.Context) (capture.CapturedImage, error) { return p(ctx) }

type fakePermission struct {
	granted   bool
	requestFn func(ctx context.Context) (bool, error)
}

func (f *fakePermission) Granted(context.Context) bool { return f.granted }
func (f *fakePermission) Request(ctx context.Context) (bool, error) {
	ok, err := f.requestFn(ctx)
	if ok {
		f.granted = true
	}
	return ok, err
}

type memReader struct {
	data map[string][]byte
	err  error
}

func (m memReader) ReadImage(_ context.Context, uri string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.data[uri], nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []capture.Notice
}

func (r *recordingNotifier) Notify(_ context.Context, n capture.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

func (r *recordingNotifier) All() []capture.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capture.Notice(nil), r.notices...)
}

type fakeRecorder struct {
	mu       sync.Mutex
	started  int
	finished []capture.OutcomeKind
	elapsed  []time.Duration
}

func (f *fakeRecorder) SubmissionStarted(capture.Mode) {
	f.mu.Lock()
	f.started++
	f.mu.Unlock()
}

func (f *fakeRecorder) SubmissionFinished(_ capture.Mode, kind capture.OutcomeKind, elapsed time.Duration) {
	f.mu.Lock()
	f.finished = append(f.finished, kind)
	f.elapsed = append(f.elapsed, elapsed)
	f.mu.Unlock()
}
