// Package capture implements the capture/submit protocol: acquire an image, validate
// the registration input, send one multipart request and turn the reply into a notice.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"faceattend/internal/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder observes submissions. Implemented by internal/metrics.
type Recorder interface {
	SubmissionStarted(mode Mode)
	SubmissionFinished(mode Mode, kind OutcomeKind, elapsed time.Duration)
}

// Snapshot is the controller state a screen renders.
type Snapshot struct {
	State        string  `json:"state"`
	Mode         string  `json:"mode"`
	EmployeeName string  `json:"employee_name"`
	Busy         bool    `json:"busy"`
	LastNotice   *Notice `json:"last_notice,omitempty"`
}

// Controller owns the capture/submit state machine. At most one action is in
// flight per instance; actions arriving meanwhile return OutcomeIgnored.
type Controller struct {
	submitter  Submitter
	camera     Camera
	permission Permission
	reader     ImageReader
	notifier   Notifier
	recorder   Recorder
	logger     *zap.Logger
	newID      func() string
	now        func() time.Time

	mu    sync.Mutex
	state State
	mode  Mode
	name  string
	busy  bool
	last  *Notice
}

// Option configures a Controller.
type Option func(*Controller)

func WithCamera(cam Camera) Option { return func(c *Controller) { c.camera = cam } }
func WithPermission(p Permission) Option { return func(c *Controller) { c.permission = p } }
func WithImageReader(r ImageReader) Option { return func(c *Controller) { c.reader = r } }
func WithNotifier(n Notifier) Option { return func(c *Controller) { c.notifier = n } }
func WithRecorder(r Recorder) Option { return func(c *Controller) { c.recorder = r } }
func WithLogger(l *zap.Logger) Option { return func(c *Controller) { c.logger = l } }
func WithIDGenerator(f func() string) Option { return func(c *Controller) { c.newID = f } }
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }
func WithInitialMode(m Mode) Option { return func(c *Controller) { c.mode = m } }

// New creates a controller in Idle, Register mode.
func New(submitter Submitter, opts ...Option) *Controller {
	c := &Controller{
		submitter: submitter,
		reader:    FileReader{},
		newID:     uuid.NewString,
		now:       time.Now,
		state:     StateIdle,
		mode:      ModeRegister,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.L().Named("capture.controller")
	}
	return c
}

// SetMode switches the active tab. The mode of an in-flight submission is fixed
// when it starts.
func (c *Controller) SetMode(m Mode) {
	c.mu.Lock()
	c.mode = m
	c.mu.Unlock()
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) SetEmployeeName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

func (c *Controller) EmployeeName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		State:        c.state.String(),
		Mode:         c.mode.String(),
		EmployeeName: c.name,
		Busy:         c.busy,
	}
	if c.last != nil {
		n := *c.last
		s.LastNotice = &n
	}
	return s
}

// CaptureFromCamera runs the camera path: permission gate, capture, validate, submit.
func (c *Controller) CaptureFromCamera(ctx context.Context) Outcome {
	if !c.begin() {
		return Outcome{Kind: OutcomeIgnored}
	}
	defer c.end()

	if c.camera == nil {
		c.logger.Warn("camera capture requested but no camera is configured")
		c.setState(StateIdle)
		return c.emit(ctx, c.Mode(), Outcome{Kind: OutcomeCaptureError, Title: TitleError, Message: MsgCaptureFailed})
	}

	if c.permission != nil && !c.permission.Granted(ctx) {
		c.setState(StateAwaitingPermission)
		granted, err := c.permission.Request(ctx)
		if err != nil {
			c.logger.Warn("camera permission request failed", zap.Error(err))
		}
		if !granted {
			return c.permissionDenied()
		}
	}

	c.setState(StateCapturing)
	img, err := c.camera.Capture(ctx)
	if err != nil {
		return c.acquireFailed(ctx, err, MsgCaptureFailed)
	}
	if d, ok := c.camera.(Discarder); ok {
		defer c.discard(d, img)
	}
	return c.submit(ctx, img)
}

// PickFromGallery runs the gallery path. No permission state is involved.
func (c *Controller) PickFromGallery(ctx context.Context, picker Picker) Outcome {
	if !c.begin() {
		return Outcome{Kind: OutcomeIgnored}
	}
	defer c.end()

	c.setState(StateCapturing)
	img, err := picker.Pick(ctx)
	if err != nil {
		return c.acquireFailed(ctx, err, MsgPickFailed)
	}
	return c.submit(ctx, img)
}

// RequestPermission is the retry action offered by the permission-required display.
func (c *Controller) RequestPermission(ctx context.Context) Outcome {
	if !c.begin() {
		return Outcome{Kind: OutcomeIgnored}
	}
	defer c.end()

	if c.permission == nil {
		c.setState(StateIdle)
		return Outcome{Kind: OutcomePermissionGranted}
	}
	c.setState(StateAwaitingPermission)
	granted, err := c.permission.Request(ctx)
	if err != nil {
		c.logger.Warn("camera permission request failed", zap.Error(err))
	}
	if !granted {
		return c.permissionDenied()
	}
	c.setState(StateIdle)
	return Outcome{Kind: OutcomePermissionGranted}
}

// Submit validates and sends an image that was acquired outside the controller.
func (c *Controller) Submit(ctx context.Context, img CapturedImage) Outcome {
	if !c.begin() {
		return Outcome{Kind: OutcomeIgnored}
	}
	defer c.end()
	return c.submit(ctx, img)
}

func (c *Controller) permissionDenied() Outcome {
	c.logger.Warn("camera permission denied", zap.String("code", apperror.CodePermissionDenied))
	c.setState(StatePermissionRequired)
	return Outcome{Kind: OutcomePermissionRequired, Title: TitleError, Message: MsgPermissionRequired}
}

func (c *Controller) discard(d Discarder, img CapturedImage) {
	if err := d.Discard(img); err != nil {
		c.logger.Warn("captured image not discarded", zap.String("filename", img.Filename), zap.Error(err))
	}
}

func (c *Controller) acquireFailed(ctx context.Context, err error, msg string) Outcome {
	c.setState(StateIdle)
	if errors.Is(err, apperror.ErrCanceled) {
		return Outcome{Kind: OutcomeCanceled}
	}
	code := apperror.CodeOf(err)
	if code == "" {
		code = apperror.CodeCaptureFailed
	}
	c.logger.Error("image acquisition failed", zap.String("code", code), zap.Error(err))
	return c.emit(ctx, c.Mode(), Outcome{Kind: OutcomeCaptureError, Title: TitleError, Message: msg})
}

func (c *Controller) submit(ctx context.Context, img CapturedImage) Outcome {
	c.mu.Lock()
	mode, name := c.mode, c.name
	c.mu.Unlock()

	if mode == ModeRegister && !(RegistrationInput{EmployeeName: name}).Valid() {
		c.setState(StateIdle)
		return c.emit(ctx, mode, Outcome{Kind: OutcomeInvalid, Title: TitleError, Message: MsgNameRequired})
	}

	c.setState(StateSubmitting)
	defer c.setState(StateIdle)

	// The user cannot abort a submission once it has started.
	ctx = context.WithoutCancel(ctx)

	reqID := c.newID()
	log := c.logger.With(
		zap.String("request_id", reqID),
		zap.String("mode", mode.String()),
		zap.String("filename", img.Filename),
	)

	start := c.now()
	if c.recorder != nil {
		c.recorder.SubmissionStarted(mode)
	}
	out := c.dispatch(ctx, log, reqID, mode, name, img)
	if c.recorder != nil {
		c.recorder.SubmissionFinished(mode, out.Kind, c.now().Sub(start))
	}

	if out.Kind == OutcomeSuccess && mode == ModeRegister {
		c.mu.Lock()
		c.name = ""
		c.mu.Unlock()
	}
	return c.emit(ctx, mode, out)
}

func (c *Controller) dispatch(ctx context.Context, log *zap.Logger, reqID string, mode Mode, name string, img CapturedImage) Outcome {
	content, err := c.reader.ReadImage(ctx, img.URI)
	if err != nil {
		return c.connectivityError(log, reqID, mode, apperror.Transport(err))
	}

	req := SubmissionRequest{
		RequestID: reqID,
		Mode:      mode,
		Image:     img,
		Content:   content,
	}
	if mode == ModeRegister {
		req.EmployeeName = name
	}

	log.Info("submitting", zap.Int("bytes", len(content)))
	res, err := c.submitter.Submit(ctx, req)
	if err != nil {
		return c.connectivityError(log, reqID, mode, err)
	}

	if res.Success {
		log.Info("submission accepted", zap.String("message", res.Message))
		return Outcome{Kind: OutcomeSuccess, Title: TitleSuccess, Message: res.Message, RequestID: reqID}
	}
	log.Info("submission rejected", zap.String("message", res.Message))
	return Outcome{Kind: OutcomeFailure, Title: TitleFailed, Message: res.Message, RequestID: reqID}
}

func (c *Controller) connectivityError(log *zap.Logger, reqID string, mode Mode, err error) Outcome {
	code := apperror.CodeOf(err)
	if code == "" {
		code = apperror.CodeTransport
	}
	log.Error("submission failed", zap.String("code", code), zap.Error(err))

	msg := MsgCheckInConnection
	if mode == ModeRegister {
		msg = MsgRegisterConnection
	}
	return Outcome{Kind: OutcomeConnectivityError, Title: TitleError, Message: msg, RequestID: reqID}
}

func (c *Controller) emit(ctx context.Context, mode Mode, out Outcome) Outcome {
	if !out.Visible() {
		return out
	}
	c.mu.Lock()
	n := Notice{
		ID:        c.newID(),
		Kind:      out.Kind,
		Title:     out.Title,
		Message:   out.Message,
		Mode:      mode.String(),
		RequestID: out.RequestID,
		At:        c.now().UTC(),
	}
	c.last = &n
	c.mu.Unlock()

	if c.notifier != nil {
		if err := c.notifier.Notify(ctx, n); err != nil {
			c.logger.Warn("notice publish failed", zap.String("notice_id", n.ID), zap.Error(err))
		}
	}
	return out
}

func (c *Controller) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.busy = true
	return true
}

func (c *Controller) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
