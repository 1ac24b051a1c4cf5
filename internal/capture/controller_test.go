package capture_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"faceattend/internal/apperror"
	"faceattend/internal/capture"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type harness struct {
	ctrl     *capture.Controller
	sub      *fakeSubmitter
	notes    *recordingNotifier
	recorder *fakeRecorder
}

func newHarness(t *testing.T, submitFn func(ctx context.Context, req capture.SubmissionRequest) (capture.SubmissionResult, error), opts ...capture.Option) *harness {
	t.Helper()
	h := &harness{
		sub:      &fakeSubmitter{submitFn: submitFn},
		notes:    &recordingNotifier{},
		recorder: &fakeRecorder{},
	}
	n := 0
	base := []capture.Option{
		capture.WithLogger(zap.NewNop()),
		capture.WithNotifier(h.notes),
		capture.WithRecorder(h.recorder),
		capture.WithImageReader(memReader{data: map[string][]byte{
			"file:///photos/selfie.png": []byte("png-bytes"),
			"file:///photos/cam.jpg":    []byte("jpg-bytes"),
		}}),
		capture.WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	}
	h.ctrl = capture.New(h.sub, append(base, opts...)...)
	return h
}

func pick(uri string) pickerFunc {
	return func(context.Context) (capture.CapturedImage, error) {
		return capture.NewCapturedImage(uri), nil
	}
}

func unexpectedSubmit(t *testing.T) func(context.Context, capture.SubmissionRequest) (capture.SubmissionResult, error) {
	return func(context.Context, capture.SubmissionRequest) (capture.SubmissionResult, error) {
		t.Fatal("no request expected")
		return capture.SubmissionResult{}, nil
	}
}

func TestRegister_Success_ClearsName(t *testing.T) {
	h := newHarness(t, func(_ context.Context, req capture.SubmissionRequest) (capture.SubmissionResult, error) {
		return capture.SubmissionResult{Success: true, Message: "Registered"}, nil
	})
	h.ctrl.SetEmployeeName("Alice")

	out := h.ctrl.PickFromGallery(context.Background(), pick("file:///photos/selfie.png"))

	assert.Equal(t, capture.OutcomeSuccess, out.Kind)
	assert.Equal(t, capture.TitleSuccess, out.Title)
	assert.Equal(t, "Registered", out.Message)
	assert.Equal(t, "", h.ctrl.EmployeeName())
	assert.Equal(t, capture.StateIdle, h.ctrl.State())

	calls := h.sub.Calls()
	require.Len(t, calls, 1)
	req := calls[0]
	assert.Equal(t, capture.ModeRegister, req.Mode)
	assert.Equal(t, "Alice", req.EmployeeName)
	assert.Equal(t, "selfie.png", req.Image.Filename)
	assert.Equal(t, "image/png", req.Image.MimeType)
	assert.Equal(t, []byte("png-bytes"), req.Content)
	assert.Equal(t, out.RequestID, req.RequestID)

	notices := h.notes.All()
	require.Len(t, notices, 1)
	assert.Equal(t, capture.OutcomeSuccess, notices[0].Kind)
	assert.Equal(t, "register", notices[0].Mode)
	assert.Equal(t, 1, h.recorder.started)
	assert.Equal(t, []capture.OutcomeKind{capture.OutcomeSuccess}, h.recorder.finished)
}

func TestRegister_SendsRawUntrimmedName(t *testing.T) {
	h := newHarness(t, func(_ context.Context, req capture.SubmissionRequest) (capture.SubmissionResult, error) {
		return capture.SubmissionResult{Success: true, Message: "ok"}, nil
	})
	h.ctrl.SetEmployeeName("  Alice ")

	h.ctrl.PickFromGallery(context.Background(), pick("file:///photos/selfie.png"))

	require.Len(t, h.sub.Calls(), 1)
	assert.Equal(t, "  Alice ", h.sub.Calls()[0].EmployeeName)
}

func TestRegister_BlankName_NoRequest(t *testing.T) {
	for _, name := range []string{"", "   ", "\t\n"} {
		h := newHarness(t, unexpectedSubmit(t))
		h.ctrl.SetEmployeeName(name)

		out := h.ctrl.PickFromGallery(context.Background(), pick("file:///photos/selfie.png"))

		assert.Equal(t, capture.OutcomeInvalid, out.Kind)
		assert.Equal(t, capture.MsgNameRequired, out.Message)
		assert.Equal(t, capture.StateIdle, h.ctrl.State())
		assert.Empty(t, h.sub.Calls())
		assert.Equal(t, 0, h.recorder.started)
		require.Len(t, h.notes.All(), 1)
		assert.Equal(t, capture.OutcomeInvalid, h.notes.All()[0].Kind)
	}
}

func TestRegister_Rejected_KeepsName(t *testing.T) {
	h := newHarness(t, func(context.Context, capture.SubmissionRequest) (capture.SubmissionResult, error) {
		return capture.SubmissionResult{Success: false, Message: "Registration failed. Liveness check failed or no face detected."}, nil
	})
	h.ctrl.SetEmployeeName("Alice")

	out := h.ctrl.PickFromGallery(context.Background(), pick("file:///photos/selfie.png"))

	assert.Equal(t, capture.OutcomeFailure, out.Kind)
	assert.Equal(t, capture.TitleFailed, out.Title)
	assert.Equal(t, "Alice", h.ctrl.EmployeeName())
}

func TestCheckIn_NoMatch(t *testing.T) {
	h := newHarness(t, func(_ context.Context, req capture.SubmissionRequest) (capture.SubmissionResult, error) {
		return capture.SubmissionResult{Success: false, Message: "No match found"}, nil
	}, capture.WithInitialMode(capture.ModeCheckIn))
	h.ctrl.SetEmployeeName("typed earlier")

	out := h.ctrl.PickFromGallery(context.Background(), pick("file:///photos/cam.jpg"))

	assert.Equal(t, capture.OutcomeFailure, out.Kind)
	assert.Equal(t, "No match found", out.Message)
	assert.Equal(t, "typed earlier", h.ctrl.EmployeeName())

	calls := h.sub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, capture.ModeCheckIn, calls[0].Mode)
	assert.Equal(t, "", calls[0].EmployeeName)
	assert.Equal(t, "image/jpg", calls[0].Image.MimeType)
}

func TestCheckIn_EmptyNameIsFine(t *testing.T) {
	h := newHarness(t, func(context.Context, capture.SubmissionRequest) (capture.SubmissionResult, error) {
		return capture.SubmissionResult{Success: true, Message: "Attendance marked for Alice"}, nil
	}, capture.WithInitialMode(capture.ModeCheckIn))

	out := h.ctrl.PickFromGallery(context.Background(), pick("file:///photos/cam.jpg"))
	assert.Equal(t, capture.OutcomeSuccess, out.Kind)
	assert.Len(t, h.sub.Calls(), 1)
}

func TestCheckIn_TransportError(t *testing.T) {
	h := newHarness(t, func(context.Context, capture.SubmissionRequest) (capture.SubmissionResult, error) {
		return capture.SubmissionResult{}, apperror.Transport(errors.New("dial tcp: connection refused"))
	}, capture.WithInitialMode(capture.ModeCheckIn))

	out := h.ctrl.PickFromGallery(context.Background(), pick("file:///photos/cam.jpg"))

	assert.Equal(t, capture.OutcomeConnectivityError, out.Kind)
	assert.Equal(t, capture.TitleError, out.Title)
	assert.Equal(t, capture.MsgCheckInConnection, out.Message)
	assert.NotContains(t, out.Message, "refused")
	assert.Equal(t, capture.StateIdle, h.ctrl.State())
	assert.Len(t, h.sub.Calls(), 1)
	assert.Equal(t, []capture.OutcomeKind{capture.OutcomeConnectivityError}, h.recorder.finished)
}

func TestRegister_TransportErrorKeepsName(t *testing.T) {
	h := newHarness(t, func(context.Context, capture.SubmissionRequest) (capture.SubmissionResult, error) {
		return capture.SubmissionResult{}, apperror.SchemaViolation(errors.New("missing success"))
	})
	h.ctrl.SetEmployeeName("Alice")

	out := h.ctrl.PickFromGallery(context.Background(), pick("file:///photos/selfie.png"))

	assert.Equal(t, capture.MsgRegisterConnection, out.Message)
	assert.Equal(t, "Alice", h.ctrl.EmployeeName())
}

func TestUnreadableImage_IsConnectivityError(t *testing.T) {
	h := newHarness(t, unexpectedSubmit(t),
		capture.WithInitialMode(capture.ModeCheckIn),
		capture.WithImageReader(memReader{err: errors.New("no such file")}))

	out := h.ctrl.PickFromGallery(context.Background(), pick("file:///photos/missing.jpg"))

	assert.Equal(t, capture.OutcomeConnectivityError, out.Kind)
	assert.Empty(t, h.sub.Calls())
}

func TestGalleryCancel_NoSideEffects(t *testing.T) {
	h := newHarness(t, unexpectedSubmit(t))
	h.ctrl.SetEmployeeName("Alice")

	out := h.ctrl.PickFromGallery(context.Background(), pickerFunc(func(context.Context) (capture.CapturedImage, error) {
		return capture.CapturedImage{}, apperror.ErrCanceled
	}))

	assert.Equal(t, capture.OutcomeCanceled, out.Kind)
	assert.Equal(t, capture.StateIdle, h.ctrl.State())
	assert.Empty(t, h.notes.All())
	assert.Empty(t, h.sub.Calls())
	assert.Nil(t, h.ctrl.Snapshot().LastNotice)
}

func TestGalleryFailure_ShowsPickError(t *testing.T) {
	h := newHarness(t, unexpectedSubmit(t))

	out := h.ctrl.PickFromGallery(context.Background(), pickerFunc(func(context.Context) (capture.CapturedImage, error) {
		return capture.CapturedImage{}, errors.New("picker crashed")
	}))

	assert.Equal(t, capture.OutcomeCaptureError, out.Kind)
	assert.Equal(t, capture.MsgPickFailed, out.Message)
	assert.Equal(t, capture.StateIdle, h.ctrl.State())
}

func TestSecondSubmitWhileSubmitting_IsNoop(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	h := newHarness(t, func(context.Context, capture.SubmissionRequest) (capture.SubmissionResult, error) {
		close(entered)
		<-release
		return capture.SubmissionResult{Success: true, Message: "Attendance marked for Alice"}, nil
	}, capture.WithInitialMode(capture.ModeCheckIn))

	done := make(chan capture.Outcome, 1)
	go func() {
		done <- h.ctrl.PickFromGallery(context.Background(), pick("file:///photos/cam.jpg"))
	}()

	<-entered
	assert.Equal(t, capture.StateSubmitting, h.ctrl.State())
	assert.True(t, h.ctrl.Snapshot().Busy)

	second := h.ctrl.Submit(context.Background(), capture.NewCapturedImage("file:///photos/cam.jpg"))
	assert.Equal(t, capture.OutcomeIgnored, second.Kind)
	third := h.ctrl.CaptureFromCamera(context.Background())
	assert.Equal(t, capture.OutcomeIgnored, third.Kind)

	close(release)
	select {
	case out := <-done:
		assert.Equal(t, capture.OutcomeSuccess, out.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("first submission did not finish")
	}
	assert.Len(t, h.sub.Calls(), 1)
	assert.Equal(t, capture.StateIdle, h.ctrl.State())
	assert.False(t, h.ctrl.Snapshot().Busy)
}

func TestSubmission_SurvivesCallerCancel(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, _ capture.SubmissionRequest) (capture.SubmissionResult, error) {
		if ctx.Err() != nil {
			return capture.SubmissionResult{}, apperror.Transport(ctx.Err())
		}
		return capture.SubmissionResult{Success: true, Message: "ok"}, nil
	}, capture.WithInitialMode(capture.ModeCheckIn))

	ctx, cancel := context.WithCancel(context.Background())
	out := h.ctrl.PickFromGallery(ctx, pickerFunc(func(context.Context) (capture.CapturedImage, error) {
		cancel()
		return capture.NewCapturedImage("file:///photos/cam.jpg"), nil
	}))

	assert.Equal(t, capture.OutcomeSuccess, out.Kind)
}

func TestCamera_PermissionDeniedThenGranted(t *testing.T) {
	cam := &fakeCamera{captureFn: func(context.Context) (capture.CapturedImage, error) {
		return capture.NewCapturedImage("file:///photos/cam.jpg"), nil
	}}
	answer := false
	perm := &fakePermission{requestFn: func(context.Context) (bool, error) { return answer, nil }}
	h := newHarness(t, func(context.Context, capture.SubmissionRequest) (capture.SubmissionResult, error) {
		return capture.SubmissionResult{Success: true, Message: "Attendance marked for Alice"}, nil
	}, capture.WithInitialMode(capture.ModeCheckIn), capture.WithCamera(cam), capture.WithPermission(perm))

	out := h.ctrl.CaptureFromCamera(context.Background())
	assert.Equal(t, capture.OutcomePermissionRequired, out.Kind)
	assert.Equal(t, capture.StatePermissionRequired, h.ctrl.State())
	assert.Equal(t, 0, cam.calls)
	assert.Empty(t, h.sub.Calls())

	answer = true
	out = h.ctrl.RequestPermission(context.Background())
	assert.Equal(t, capture.OutcomePermissionGranted, out.Kind)
	assert.Equal(t, capture.StateIdle, h.ctrl.State())

	out = h.ctrl.CaptureFromCamera(context.Background())
	assert.Equal(t, capture.OutcomeSuccess, out.Kind)
	assert.Equal(t, 1, cam.calls)
	assert.Len(t, h.sub.Calls(), 1)
}

func TestCamera_CancelReturnsToIdle(t *testing.T) {
	cam := &fakeCamera{captureFn: func(context.Context) (capture.CapturedImage, error) {
		return capture.CapturedImage{}, fmt.Errorf("camera closed: %w", apperror.ErrCanceled)
	}}
	h := newHarness(t, unexpectedSubmit(t), capture.WithCamera(cam))

	out := h.ctrl.CaptureFromCamera(context.Background())
	assert.Equal(t, capture.OutcomeCanceled, out.Kind)
	assert.Equal(t, capture.StateIdle, h.ctrl.State())
	assert.Empty(t, h.notes.All())
}

func TestCamera_NotConfigured(t *testing.T) {
	h := newHarness(t, unexpectedSubmit(t))

	out := h.ctrl.CaptureFromCamera(context.Background())
	assert.Equal(t, capture.OutcomeCaptureError, out.Kind)
	assert.Equal(t, capture.MsgCaptureFailed, out.Message)
}

func TestCamera_ValidatesAfterCapture(t *testing.T) {
	cam := &fakeCamera{captureFn: func(context.Context) (capture.CapturedImage, error) {
		return capture.NewCapturedImage("file:///photos/selfie.png"), nil
	}}
	h := newHarness(t, unexpectedSubmit(t), capture.WithCamera(cam))

	out := h.ctrl.CaptureFromCamera(context.Background())
	assert.Equal(t, 1, cam.calls)
	assert.Equal(t, capture.OutcomeInvalid, out.Kind)
}

func TestCamera_DiscardsFrameAfterEveryAttempt(t *testing.T) {
	cases := []struct {
		name   string
		mode   capture.Mode
		person string
		result capture.SubmissionResult
		want   capture.OutcomeKind
	}{
		{"accepted", capture.ModeCheckIn, "", capture.SubmissionResult{Success: true, Message: "Attendance marked"}, capture.OutcomeSuccess},
		{"rejected", capture.ModeCheckIn, "", capture.SubmissionResult{Success: false, Message: "No match found"}, capture.OutcomeFailure},
		{"blank name", capture.ModeRegister, " ", capture.SubmissionResult{}, capture.OutcomeInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cam := &spoolCamera{fakeCamera: fakeCamera{captureFn: func(context.Context) (capture.CapturedImage, error) {
				return capture.NewCapturedImage("file:///photos/cam.jpg"), nil
			}}}
			h := newHarness(t, func(context.Context, capture.SubmissionRequest) (capture.SubmissionResult, error) {
				return tc.result, nil
			}, capture.WithInitialMode(tc.mode), capture.WithCamera(cam))
			h.ctrl.SetEmployeeName(tc.person)

			out := h.ctrl.CaptureFromCamera(context.Background())
			assert.Equal(t, tc.want, out.Kind)
			assert.Equal(t, []string{"file:///photos/cam.jpg"}, cam.discarded)
		})
	}
}

func TestCamera_CancelHasNothingToDiscard(t *testing.T) {
	cam := &spoolCamera{fakeCamera: fakeCamera{captureFn: func(context.Context) (capture.CapturedImage, error) {
		return capture.CapturedImage{}, apperror.ErrCanceled
	}}}
	h := newHarness(t, unexpectedSubmit(t), capture.WithCamera(cam))

	h.ctrl.CaptureFromCamera(context.Background())
	assert.Empty(t, cam.discarded)
}

func TestFailureLogsCarryCodes(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cam := &fakeCamera{captureFn: func(context.Context) (capture.CapturedImage, error) {
		return capture.CapturedImage{}, errors.New("device busy")
	}}
	perm := &fakePermission{requestFn: func(context.Context) (bool, error) { return false, nil }}
	h := newHarness(t, unexpectedSubmit(t), capture.WithCamera(cam), capture.WithLogger(zap.New(core)))

	h.ctrl.CaptureFromCamera(context.Background())
	failed := logs.FilterMessage("image acquisition failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, apperror.CodeCaptureFailed, failed[0].ContextMap()["code"])

	h2 := newHarness(t, unexpectedSubmit(t), capture.WithCamera(cam), capture.WithPermission(perm), capture.WithLogger(zap.New(core)))
	h2.ctrl.CaptureFromCamera(context.Background())
	denied := logs.FilterMessage("camera permission denied").All()
	require.Len(t, denied, 1)
	assert.Equal(t, apperror.CodePermissionDenied, denied[0].ContextMap()["code"])
}

func TestRecorder_ElapsedUsesClock(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	ticks := 0
	clock := func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * 750 * time.Millisecond)
	}
	h := newHarness(t, func(context.Context, capture.SubmissionRequest) (capture.SubmissionResult, error) {
		return capture.SubmissionResult{Success: true, Message: "ok"}, nil
	}, capture.WithInitialMode(capture.ModeCheckIn), capture.WithClock(clock))

	h.ctrl.PickFromGallery(context.Background(), pick("file:///photos/cam.jpg"))

	assert.Equal(t, []time.Duration{750 * time.Millisecond}, h.recorder.elapsed)
	notices := h.notes.All()
	require.Len(t, notices, 1)
	assert.Equal(t, base.Add(3*750*time.Millisecond), notices[0].At)
}
