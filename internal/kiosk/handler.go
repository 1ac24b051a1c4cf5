// Package kiosk is the HTTP shell of the capture screen: it renders controller
// state as JSON and maps button presses to controller actions.
package kiosk

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"faceattend/internal/apperror"
	"faceattend/internal/attendanceclient"
	"faceattend/internal/capture"
	"faceattend/internal/device"
	"faceattend/internal/notice"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Controller is the part of capture.Controller the shell drives.
type Controller interface {
	SetMode(capture.Mode)
	SetEmployeeName(string)
	Snapshot() capture.Snapshot
	CaptureFromCamera(ctx context.Context) capture.Outcome
	PickFromGallery(ctx context.Context, p capture.Picker) capture.Outcome
	RequestPermission(ctx context.Context) capture.Outcome
}

// Directory serves the read-only backend endpoints.
type Directory interface {
	Employees(ctx context.Context) ([]attendanceclient.Employee, error)
	AttendanceHistory(ctx context.Context, name string) (*attendanceclient.History, error)
	Health(ctx context.Context) error
}

type Handler struct {
	ctrl     Controller
	dir      Directory
	board    *notice.Board
	spoolDir string
	redisOK  func(ctx context.Context) bool
	logger   *zap.Logger
}

func New(ctrl Controller, dir Directory, board *notice.Board, spoolDir string) *Handler {
	if spoolDir == "" {
		spoolDir = os.TempDir()
	}
	return &Handler{
		ctrl:     ctrl,
		dir:      dir,
		board:    board,
		spoolDir: spoolDir,
		logger:   zap.L().Named("kiosk"),
	}
}

// WithRedisHealth adds a redis check to /healthz.
func (h *Handler) WithRedisHealth(check func(ctx context.Context) bool) *Handler {
	h.redisOK = check
	return h
}

type outcomeResponse struct {
	Kind      capture.OutcomeKind `json:"kind"`
	Code      string              `json:"code,omitempty"`
	Error     string              `json:"error,omitempty"`
	Title     string              `json:"title,omitempty"`
	Message   string              `json:"message,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
	State     capture.Snapshot    `json:"state"`
}

func (h *Handler) respondOutcome(c *gin.Context, out capture.Outcome) {
	resp := outcomeResponse{
		Kind:      out.Kind,
		Title:     out.Title,
		Message:   out.Message,
		RequestID: out.RequestID,
		State:     h.ctrl.Snapshot(),
	}
	status := http.StatusOK
	if out.Kind == capture.OutcomeIgnored {
		status = apperror.StatusOf(apperror.ErrBusy)
		resp.Code = apperror.ErrBusy.Code
		resp.Error = apperror.ErrBusy.Message
	}
	c.JSON(status, resp)
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	backendOK := h.dir.Health(c.Request.Context()) == nil
	resp := gin.H{"status": "ok", "backend": backendOK}
	status := http.StatusOK
	if !backendOK {
		status = http.StatusServiceUnavailable
	}
	if h.redisOK != nil {
		redisOK := h.redisOK(c.Request.Context())
		resp["redis"] = redisOK
		if !redisOK {
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, resp)
}

// ---------- Screen state ----------

func (h *Handler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

func (h *Handler) SetMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := capture.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.ctrl.SetMode(m)
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

type nameRequest struct {
	EmployeeName *string `json:"employee_name"`
}

func (h *Handler) SetEmployeeName(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.EmployeeName == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "employee_name is required"})
		return
	}
	h.ctrl.SetEmployeeName(*req.EmployeeName)
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

// ---------- Capture actions ----------

func (h *Handler) CaptureCamera(c *gin.Context) {
	h.respondOutcome(c, h.ctrl.CaptureFromCamera(c.Request.Context()))
}

// PickGallery accepts the chosen photo as multipart field "file". A well-formed
// form without a file is a dismissed picker; a broken body is a 400.
func (h *Handler) PickGallery(c *gin.Context) {
	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		h.respondOutcome(c, h.ctrl.PickFromGallery(c.Request.Context(), device.FilePick("")))
		return
	}
	if err != nil {
		h.logger.Warn("malformed gallery upload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart upload: " + err.Error()})
		return
	}

	name := filepath.Base(fh.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = "upload"
	}
	dir := filepath.Join(h.spoolDir, "gallery-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		h.logger.Error("spool dir create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store photo"})
		return
	}
	defer os.RemoveAll(dir)

	dst := filepath.Join(dir, name)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		h.logger.Error("save upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store photo"})
		return
	}
	h.respondOutcome(c, h.ctrl.PickFromGallery(c.Request.Context(), device.FilePick(dst)))
}

func (h *Handler) RequestPermission(c *gin.Context) {
	h.respondOutcome(c, h.ctrl.RequestPermission(c.Request.Context()))
}

// ---------- Notices ----------

func (h *Handler) Notices(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	notices := h.board.Recent(limit)
	if notices == nil {
		notices = []capture.Notice{}
	}
	c.JSON(http.StatusOK, gin.H{"notices": notices})
}

// ---------- Directory ----------

func (h *Handler) Employees(c *gin.Context) {
	employees, err := h.dir.Employees(c.Request.Context())
	if err != nil {
		h.logger.Error("list employees failed", zap.Error(err))
		c.JSON(apperror.StatusOf(err), gin.H{"error": "attendance service unavailable"})
		return
	}
	if employees == nil {
		employees = []attendanceclient.Employee{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(employees), "employees": employees})
}

func (h *Handler) AttendanceHistory(c *gin.Context) {
	hist, err := h.dir.AttendanceHistory(c.Request.Context(), c.Param("name"))
	if err != nil {
		if apperror.CodeOf(err) == apperror.CodeValidation {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("attendance history failed", zap.Error(err))
		c.JSON(apperror.StatusOf(err), gin.H{"error": "attendance service unavailable"})
		return
	}
	c.JSON(http.StatusOK, hist)
}
