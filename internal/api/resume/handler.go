// Package resume serves resume scanning: quota check, AI scoring and the
// caller's scan history.
package resume

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"ats-scanner/internal/ai"
	"ats-scanner/internal/api/usage"
	"ats-scanner/internal/apperr"
	"ats-scanner/internal/domain/scans"
	"ats-scanner/internal/logger"
	"ats-scanner/internal/quota"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxResumeBytes = 512 << 10
	maxBulkFiles   = 10
	historyLimit   = 50
)

var (
	errUnsupportedType = fmt.Errorf("%w: only text/plain uploads or JSON bodies are accepted", apperr.ErrValidation)
	errEmptyResume     = fmt.Errorf("%w: resume text is empty", apperr.ErrValidation)
	errResumeTooLarge  = fmt.Errorf("%w: resume exceeds %d bytes", apperr.ErrValidation, maxResumeBytes)
)

type Handler struct {
	db        *gorm.DB
	ledger    *quota.Ledger
	scorer    ai.Scorer
	freeLimit int
	logger    *zap.Logger
}

// NewHandler wires the scan endpoints. scorer may be nil when no AI backend
// is configured; scans then answer 503.
func NewHandler(db *gorm.DB, ledger *quota.Ledger, scorer ai.Scorer, freeLimit int, log *zap.Logger) *Handler {
	return &Handler{db: db, ledger: ledger, scorer: scorer, freeLimit: freeLimit, logger: logger.OrNop(log)}
}

type scanRequest struct {
	ResumeText     string `json:"resume_text"`
	JobDescription string `json:"job_description"`
	Industry       string `json:"industry"`
	FileName       string `json:"file_name"`
}

type ScanResponse struct {
	ScanID          uint   `json:"scan_id"`
	FileName        string `json:"file_name,omitempty"`
	Score           int    `json:"score"`
	Feedback        string `json:"feedback"`
	OptimizedResume string `json:"optimized_resume"`
	RemainingScans  int    `json:"remaining_scans"`
	MembershipType  string `json:"membership_type"`
	// Recorded is true once the scan has been counted against the caller's
	// quota. Clients must not follow a recorded scan with record-scan.
	Recorded        bool   `json:"recorded"`
}

// POST /resume/scan
//
// Self-recording: a successful scan is counted here. POST /resume/record-scan
// is only for uploads scored somewhere else.
func (h *Handler) Scan(c *gin.Context) {
	if h.scorer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Resume scoring is not configured"})
		return
	}

	req, err := readScanRequest(c)
	if err != nil {
		abortWith(c, err)
		return
	}

	caller := usage.CallerOf(c)
	ctx := c.Request.Context()
	d, err := h.ledger.Check(ctx, caller, h.freeLimit)
	if err != nil {
		h.logger.Error("quota check failed", append(logger.Subject(caller.UserID, caller.Address), zap.Error(err))...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check usage"})
		return
	}
	if !d.CanScan {
		denied(c, d)
		return
	}

	resp, err := h.score(c, caller, req)
	if err != nil {
		abortWith(c, err)
		return
	}
	resp.RemainingScans = d.RemainingScans
	resp.MembershipType = d.MembershipType
	c.JSON(http.StatusOK, resp)
}

// POST /resume/scan/bulk
func (h *Handler) BulkScan(c *gin.Context) {
	if h.scorer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Resume scoring is not configured"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form with files is required"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 || len(files) > maxBulkFiles {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("send between 1 and %d files", maxBulkFiles)})
		return
	}

	job := scanRequest{
		JobDescription: c.PostForm("job_description"),
		Industry:       c.PostForm("industry"),
	}
	caller := usage.CallerOf(c)

	results := make([]gin.H, 0, len(files))
	for _, fh := range files {
		req := job
		req.FileName = filepath.Base(fh.Filename)
		req.ResumeText, err = readTextFile(fh)
		if err == nil {
			var resp *ScanResponse
			resp, err = h.score(c, caller, req)
			if err == nil {
				results = append(results, gin.H{"file_name": req.FileName, "result": resp})
				continue
			}
		}
		if apperr.Status(err) == http.StatusInternalServerError {
			c.JSON(http.StatusInternalServerError, gin.H{"error": apperr.Message(err)})
			return
		}
		results = append(results, gin.H{"file_name": req.FileName, "error": err.Error()})
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// GET /resume/history
func (h *Handler) History(c *gin.Context) {
	userID := c.GetUint("user_id")

	var out []scans.Scan
	err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(historyLimit).
		Find(&out).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load scan history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": out})
}

// score runs the AI assessment, stores the scan and records it against the
// caller's quota.
func (h *Handler) score(c *gin.Context, caller quota.Caller, req scanRequest) (*ScanResponse, error) {
	ctx := c.Request.Context()
	if strings.TrimSpace(req.ResumeText) == "" {
		return nil, errEmptyResume
	}

	a, err := h.scorer.Score(ctx, req.ResumeText, ai.JobContext{
		Description: req.JobDescription,
		Industry:    req.Industry,
	})
	if err != nil {
		h.logger.Warn("resume scoring failed", append(logger.Subject(caller.UserID, caller.Address), zap.Error(err))...)
		return nil, err
	}

	scan := scans.Scan{
		IPAddress:       caller.Address,
		FileName:        req.FileName,
		Industry:        req.Industry,
		Content:         req.ResumeText,
		JobDescription:  req.JobDescription,
		Score:           ai.ClampScore(float64(a.Score)),
		Feedback:        ai.SanitizeFeedback(a.Feedback),
		OptimizedResume: a.OptimizedResume,
	}
	if !caller.Anonymous() {
		scan.UserID = &caller.UserID
	}
	if err := h.db.WithContext(ctx).Create(&scan).Error; err != nil {
		return nil, fmt.Errorf("store scan: %w", err)
	}

	// The scan is stored at this point; a meter failure is only logged.
	recorded := true
	if err := h.ledger.Record(ctx, caller); err != nil {
		recorded = false
		h.logger.Error("record scan failed",
			append(logger.Subject(caller.UserID, caller.Address), zap.Uint("scan_id", scan.ID), zap.Error(err))...)
	}

	return &ScanResponse{
		ScanID:          scan.ID,
		FileName:        scan.FileName,
		Score:           scan.Score,
		Feedback:        scan.Feedback,
		OptimizedResume: scan.OptimizedResume,
		Recorded:        recorded,
	}, nil
}

func readScanRequest(c *gin.Context) (scanRequest, error) {
	switch c.ContentType() {
	case gin.MIMEJSON:
		var req scanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return scanRequest{}, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
		}
		if len(req.ResumeText) > maxResumeBytes {
			return scanRequest{}, errResumeTooLarge
		}
		return req, nil

	case gin.MIMEMultipartPOSTForm:
		fh, err := c.FormFile("file")
		if err != nil {
			return scanRequest{}, fmt.Errorf("%w: file is required", apperr.ErrValidation)
		}
		text, err := readTextFile(fh)
		if err != nil {
			return scanRequest{}, err
		}
		return scanRequest{
			ResumeText:     text,
			JobDescription: c.PostForm("job_description"),
			Industry:       c.PostForm("industry"),
			FileName:       filepath.Base(fh.Filename),
		}, nil

	default:
		return scanRequest{}, errUnsupportedType
	}
}

func readTextFile(fh *multipart.FileHeader) (string, error) {
	ct := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") && !strings.EqualFold(filepath.Ext(fh.Filename), ".txt") {
		return "", errUnsupportedType
	}
	if fh.Size > maxResumeBytes {
		return "", errResumeTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("%w: cannot open upload", apperr.ErrValidation)
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, maxResumeBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: cannot read upload", apperr.ErrValidation)
	}
	if len(b) > maxResumeBytes {
		return "", errResumeTooLarge
	}
	return string(b), nil
}

func denied(c *gin.Context, d quota.Decision) {
	if d.Reason == quota.ReasonUserNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found", "reason": d.Reason})
		return
	}
	c.JSON(http.StatusPaymentRequired, gin.H{
		"error":            "scan limit reached",
		"reason":           quota.ReasonLimitReached,
		"upgrade_required": true,
	})
}

func abortWith(c *gin.Context, err error) {
	if errors.Is(err, errUnsupportedType) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
		return
	}
	c.JSON(apperr.Status(err), gin.H{"error": apperr.Message(err)})
}
