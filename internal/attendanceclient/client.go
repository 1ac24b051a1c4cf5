// Package attendanceclient speaks the attendance backend's HTTP contract.
package attendanceclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"faceattend/internal/apperror"
	"faceattend/internal/capture"
	"faceattend/internal/formdata"

	"go.uber.org/zap"
)

const (
	RegisterPath       = "/api/register"
	MarkAttendancePath = "/api/mark-attendance"
	EmployeesPath      = "/api/employees"
	AttendancePath     = "/api/attendance/"
	HealthPath         = "/health"

	maxResponseBytes = 1 << 20
)

// Employee is one entry of the employee listing.
type Employee struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// AttendanceRecord is one check-in timestamp as reported by the backend.
type AttendanceRecord struct {
	Timestamp string `json:"timestamp"`
}

// History is the attendance log of a single employee.
type History struct {
	EmployeeName string             `json:"employee_name"`
	Count        int                `json:"attendance_count"`
	Records      []AttendanceRecord `json:"records"`
}

// Client calls the attendance backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
	logger  *zap.Logger
}

// New creates a client for baseURL. A zero timeout means 30s.
func New(baseURL string, timeout time.Duration, skip bool) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second // recognition on the server can take a while
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Skip:    skip,
		HTTP:    &http.Client{Timeout: timeout},
		logger:  zap.L().Named("attendanceclient"),
	}
}

// WithLogger replaces the client's logger.
func (c *Client) WithLogger(l *zap.Logger) *Client {
	c.logger = l
	return c
}

// Endpoint returns the path a submission in mode m is posted to.
func Endpoint(m capture.Mode) string {
	if m == capture.ModeRegister {
		return RegisterPath
	}
	return MarkAttendancePath
}

// Submit posts one multipart request and parses the {success, message} reply.
// The HTTP status is not interpreted; only the JSON body decides the result.
func (c *Client) Submit(ctx context.Context, req capture.SubmissionRequest) (capture.SubmissionResult, error) {
	if c.Skip {
		return capture.SubmissionResult{Success: true, Message: "Submission skipped (mock)"}, nil
	}

	b := formdata.NewBuilder()
	if req.Mode == capture.ModeRegister {
		if err := b.AddText("name", req.EmployeeName); err != nil {
			return capture.SubmissionResult{}, apperror.Transport(err)
		}
	}
	if err := b.AddFile("image", req.Image.Filename, req.Image.MimeType, req.Content); err != nil {
		return capture.SubmissionResult{}, apperror.Transport(err)
	}
	body, contentType, err := b.Finish()
	if err != nil {
		return capture.SubmissionResult{}, apperror.Transport(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+Endpoint(req.Mode), body)
	if err != nil {
		return capture.SubmissionResult{}, apperror.Transport(err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", req.RequestID)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return capture.SubmissionResult{}, apperror.Transport(fmt.Errorf("attendance service request failed: %w", err))
	}
	defer resp.Body.Close()

	c.logger.Debug("attendance service replied",
		zap.String("request_id", req.RequestID),
		zap.Int("status", resp.StatusCode))

	return decodeResult(resp.Body)
}

func decodeResult(r io.Reader) (capture.SubmissionResult, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxResponseBytes))
	if err != nil {
		return capture.SubmissionResult{}, apperror.Transport(fmt.Errorf("read response: %w", err))
	}

	var out struct {
		Success *bool   `json:"success"`
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return capture.SubmissionResult{}, apperror.SchemaViolation(fmt.Errorf("field %q: %w", typeErr.Field, err))
		}
		return capture.SubmissionResult{}, apperror.Transport(fmt.Errorf("failed to decode response: %w", err))
	}
	if out.Success == nil {
		return capture.SubmissionResult{}, apperror.SchemaViolation(errors.New(`missing "success"`))
	}
	if out.Message == nil {
		return capture.SubmissionResult{}, apperror.SchemaViolation(errors.New(`missing "message"`))
	}
	return capture.SubmissionResult{Success: *out.Success, Message: *out.Message}, nil
}

// Employees lists registered employees.
func (c *Client) Employees(ctx context.Context) ([]Employee, error) {
	if c.Skip {
		return []Employee{{ID: 1, Name: "Mock Employee"}}, nil
	}

	var out struct {
		Success   bool       `json:"success"`
		Count     int        `json:"count"`
		Employees []Employee `json:"employees"`
	}
	if err := c.getJSON(ctx, EmployeesPath, &out); err != nil {
		return nil, err
	}
	return out.Employees, nil
}

// AttendanceHistory returns the attendance log for an employee name.
func (c *Client) AttendanceHistory(ctx context.Context, name string) (*History, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperror.New(apperror.CodeValidation, "employee name required", http.StatusBadRequest)
	}
	if c.Skip {
		return &History{EmployeeName: name}, nil
	}

	var out History
	if err := c.getJSON(ctx, AttendancePath+url.PathEscape(name), &out); err != nil {
		return nil, err
	}
	if out.EmployeeName == "" {
		out.EmployeeName = name
	}
	return &out, nil
}

// Health checks if the attendance service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+HealthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return apperror.Transport(fmt.Errorf("attendance service unavailable: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return apperror.Transport(fmt.Errorf("attendance service unhealthy: %s", resp.Status))
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return apperror.Transport(fmt.Errorf("attendance service request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return apperror.Transport(fmt.Errorf("attendance service error %s: %s", resp.Status, string(bodyBytes)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return apperror.Transport(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
