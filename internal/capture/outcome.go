package capture

import "time"

// OutcomeKind classifies how a user action ended.
type OutcomeKind string

const (
	OutcomeIgnored            OutcomeKind = "ignored"
	OutcomeCanceled           OutcomeKind = "canceled"
	OutcomeSuccess            OutcomeKind = "success"
	OutcomeFailure            OutcomeKind = "failure"
	OutcomeInvalid            OutcomeKind = "invalid"
	OutcomeConnectivityError  OutcomeKind = "connectivity_error"
	OutcomePermissionRequired OutcomeKind = "permission_required"
	OutcomePermissionGranted  OutcomeKind = "permission_granted"
	OutcomeCaptureError       OutcomeKind = "capture_error"
)

const (
	TitleSuccess = "Success"
	TitleFailed  = "Failed"
	TitleError   = "Error"
)

const (
	MsgNameRequired       = "Please enter employee name"
	MsgRegisterConnection = "Failed to register employee. Check your connection."
	MsgCheckInConnection  = "Failed to mark attendance. Check your connection."
	MsgCaptureFailed      = "Failed to take picture"
	MsgPickFailed         = "Failed to pick image"
	MsgPermissionRequired = "We need camera permission"
)

// Outcome is what a user action produced.
type Outcome struct {
	Kind      OutcomeKind
	Title     string
	Message   string
	RequestID string
}

// Notice is a displayed alert.
type Notice struct {
	ID        string      `json:"id"`
	Kind      OutcomeKind `json:"kind"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Mode      string      `json:"mode"`
	RequestID string      `json:"request_id,omitempty"`
	At        time.Time   `json:"at"`
}

// Visible reports whether the outcome shows the user a notice.
func (o Outcome) Visible() bool {
	switch o.Kind {
	case OutcomeSuccess, OutcomeFailure, OutcomeInvalid, OutcomeConnectivityError, OutcomeCaptureError:
		return true
	}
	return false
}
