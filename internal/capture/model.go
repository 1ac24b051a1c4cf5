package capture

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Mode selects the submission flow.
type Mode int

const (
	ModeRegister Mode = iota
	ModeCheckIn
)

func (m Mode) String() string {
	switch m {
	case ModeRegister:
		return "register"
	case ModeCheckIn:
		return "checkin"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "register" and "checkin" (also "attendance").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "register":
		return ModeRegister, nil
	case "checkin", "check-in", "attendance":
		return ModeCheckIn, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// State is the controller's position in the capture/submit protocol.
type State int

const (
	StateIdle State = iota
	StateAwaitingPermission
	StatePermissionRequired
	StateCapturing
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingPermission:
		return "awaiting_permission"
	case StatePermissionRequired:
		return "permission_required"
	case StateCapturing:
		return "capturing"
	case StateSubmitting:
		return "submitting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	defaultFilename = "photo.jpg"
	defaultMimeType = "image/jpeg"
)

var extPattern = regexp.MustCompile(`\.(\w+)$`)

// CapturedImage is a locally acquired photo.
type CapturedImage struct {
	URI      string
	Filename string
	MimeType string
}

// NewCapturedImage derives filename and mime type from the last path segment of uri.
func NewCapturedImage(uri string) CapturedImage {
	filename := uri
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		filename = uri[i+1:]
	}
	if filename == "" {
		return CapturedImage{URI: uri, Filename: defaultFilename, MimeType: defaultMimeType}
	}
	mimeType := defaultMimeType
	if m := extPattern.FindStringSubmatch(filename); m != nil {
		mimeType = "image/" + m[1]
	}
	return CapturedImage{URI: uri, Filename: filename, MimeType: mimeType}
}

// RegistrationInput is the identity entered for Register mode.
type RegistrationInput struct {
	EmployeeName string
}

// Valid reports whether the name is non-empty after trimming.
func (r RegistrationInput) Valid() bool {
	return strings.TrimSpace(r.EmployeeName) != ""
}

// SubmissionRequest is built right before dispatch. EmployeeName carries the raw,
// untrimmed string and is only sent in Register mode.
type SubmissionRequest struct {
	RequestID    string
	Mode         Mode
	Image        CapturedImage
	Content      []byte
	EmployeeName string
}

// SubmissionResult is the parsed server response.
type SubmissionResult struct {
	Success bool
	Message string
}

// Submitter dispatches one request and parses the reply. A well-formed negative
// reply is a result with Success false, not an error.
type Submitter interface {
	Submit(ctx context.Context, req SubmissionRequest) (SubmissionResult, error)
}

// Camera captures a photo. Returns apperror.ErrCanceled when the user dismisses it.
type Camera interface {
	Capture(ctx context.Context) (CapturedImage, error)
}

// Discarder is implemented by cameras that leave a file behind. The controller
// calls Discard once the submission attempt for that image is over.
type Discarder interface {
	Discard(img CapturedImage) error
}

// Picker selects an existing photo. Returns apperror.ErrCanceled on cancel.
type Picker interface {
	Pick(ctx context.Context) (CapturedImage, error)
}

// Permission gates camera access.
type Permission interface {
	Granted(ctx context.Context) bool
	Request(ctx context.Context) (bool, error)
}

// ImageReader loads the bytes behind a CapturedImage URI.
type ImageReader interface {
	ReadImage(ctx context.Context, uri string) ([]byte, error)
}

// Notifier receives every user-visible notice.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}
