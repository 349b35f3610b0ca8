package resume

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"ats-scanner/internal/ai"
	"ats-scanner/internal/apperr"
	"ats-scanner/internal/domain/membership"
	"ats-scanner/internal/domain/plans"
	"ats-scanner/internal/domain/scans"
	"ats-scanner/internal/domain/users"
	"ats-scanner/internal/quota"
	"ats-scanner/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubScorer struct {
	calls int
	err   error
	last  ai.JobContext
}

func (s *stubScorer) Score(_ context.Context, resumeText string, job ai.JobContext) (*ai.Assessment, error) {
	s.calls++
	s.last = job
	if s.err != nil {
		return nil, s.err
	}
	return &ai.Assessment{
		Score:           120,
		Feedback:        `<p>Strong</p><img src=x onerror="alert(1)">`,
		OptimizedResume: strings.ToUpper(resumeText),
	}, nil
}

type env struct {
	db     *gorm.DB
	scorer *stubScorer
	router *gin.Engine
}

func newRouter(t *testing.T, userID uint, db *gorm.DB, scorer ai.Scorer) *gin.Engine {
	t.Helper()
	h := NewHandler(db, quota.NewLedger(db), scorer, 3, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != 0 {
			c.Set("user_id", userID)
		}
		c.Next()
	})
	r.POST("/resume/scan", h.Scan)
	r.POST("/resume/scan/bulk", h.BulkScan)
	r.GET("/resume/history", h.History)
	return r
}

func setup(t *testing.T, userID func(db *gorm.DB) uint) *env {
	t.Helper()
	db := testutil.NewDB(t)
	var id uint
	if userID != nil {
		id = userID(db)
	}
	scorer := &stubScorer{}
	return &env{db: db, scorer: scorer, router: newRouter(t, id, db, scorer)}
}

func postJSON(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/resume/scan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type upload struct {
	field, name, contentType, content string
}

func postMultipart(r *gin.Engine, path string, fields map[string]string, files ...upload) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	for _, f := range files {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name))
		hdr.Set("Content-Type", f.contentType)
		part, _ := mw.CreatePart(hdr)
		_, _ = part.Write([]byte(f.content))
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestScanJSONAnonymous(t *testing.T) {
	e := setup(t, nil)

	w := postJSON(e.router, `{"resume_text":"jane doe","job_description":"go dev","industry":"fintech"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 100, resp.Score)
	assert.Contains(t, resp.Feedback, "<p>Strong</p>")
	assert.NotContains(t, resp.Feedback, "onerror")
	assert.Equal(t, "JANE DOE", resp.OptimizedResume)
	assert.Equal(t, 2, resp.RemainingScans)
	assert.Equal(t, "free", resp.MembershipType)
	assert.Equal(t, ai.JobContext{Description: "go dev", Industry: "fintech"}, e.scorer.last)

	var stored scans.Scan
	require.NoError(t, e.db.First(&stored, resp.ScanID).Error)
	assert.Nil(t, stored.UserID)
	assert.Equal(t, "192.0.2.1", stored.IPAddress)
}

func TestScanCountsItselfOnce(t *testing.T) {
	e := setup(t, nil)

	w := postJSON(e.router, `{"resume_text":"cv"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Recorded)

	d, err := quota.NewLedger(e.db).Check(context.Background(), quota.Caller{Address: "192.0.2.1"}, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, d.RemainingScans, "one scan consumes exactly one unit")
}

func TestScanLimitAnswers402(t *testing.T) {
	e := setup(t, nil)

	for range 3 {
		require.Equal(t, http.StatusOK, postJSON(e.router, `{"resume_text":"cv"}`).Code)
	}

	w := postJSON(e.router, `{"resume_text":"cv"}`)
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.JSONEq(t, `{"error":"scan limit reached","reason":"limit_reached","upgrade_required":true}`, w.Body.String())
	assert.Equal(t, 3, e.scorer.calls, "a denied scan never reaches the scorer")
}

func TestScanMultipartTextFile(t *testing.T) {
	e := setup(t, func(db *gorm.DB) uint { return testutil.NewUser(t, db, 0).ID })

	w := postMultipart(e.router, "/resume/scan",
		map[string]string{"job_description": "sre", "industry": "cloud"},
		upload{field: "file", name: "cv.txt", contentType: "text/plain", content: "john smith"},
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cv.txt", resp.FileName)
	assert.Equal(t, "JOHN SMITH", resp.OptimizedResume)

	var u users.User
	require.NoError(t, e.db.First(&u).Error)
	assert.Equal(t, 1, u.ScanCount)
	require.NotNil(t, u.LastScanDate)
}

func TestScanRejectsUnsupportedInput(t *testing.T) {
	e := setup(t, nil)

	w := postMultipart(e.router, "/resume/scan", nil,
		upload{field: "file", name: "cv.pdf", contentType: "application/pdf", content: "%PDF"})
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/resume/scan", strings.NewReader("cv"))
	req.Header.Set("Content-Type", "application/xml")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	assert.Equal(t, http.StatusBadRequest, postJSON(e.router, `{"resume_text":"  "}`).Code)
	assert.Zero(t, e.scorer.calls)

	var n int64
	require.NoError(t, e.db.Model(&scans.Scan{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestScanScorerFailure(t *testing.T) {
	e := setup(t, nil)
	e.scorer.err = fmt.Errorf("%w: gemini: quota exceeded", apperr.ErrExternalService)

	w := postJSON(e.router, `{"resume_text":"cv"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	e.scorer.err = nil
	w = postJSON(e.router, `{"resume_text":"cv"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.RemainingScans, "a failed scoring is not metered")
}

func TestScanWithoutScorer(t *testing.T) {
	db := testutil.NewDB(t)
	r := newRouter(t, 0, db, nil)
	assert.Equal(t, http.StatusServiceUnavailable, postJSON(r, `{"resume_text":"cv"}`).Code)
}

func TestBulkScanAndHistory(t *testing.T) {
	e := setup(t, func(db *gorm.DB) uint {
		u := testutil.NewUser(t, db, 0)
		testutil.GiveMembership(t, db, u.ID, membership.Membership{
			Type:     plans.TypePremium,
			IsActive: true,
			EndDate:  testutil.Ptr(time.Now().Add(24 * time.Hour)),
		})
		return u.ID
	})

	w := postMultipart(e.router, "/resume/scan/bulk", map[string]string{"industry": "retail"},
		upload{field: "files", name: "a.txt", contentType: "text/plain", content: "alpha"},
		upload{field: "files", name: "b.docx", contentType: "application/octet-stream", content: "beta"},
		upload{field: "files", name: "c.txt", contentType: "text/plain", content: "gamma"},
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var bulk struct {
		Results []struct {
			FileName string        `json:"file_name"`
			Result   *ScanResponse `json:"result"`
			Error    string        `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bulk))
	require.Len(t, bulk.Results, 3)
	assert.Equal(t, "ALPHA", bulk.Results[0].Result.OptimizedResume)
	assert.NotEmpty(t, bulk.Results[1].Error)
	assert.Equal(t, "GAMMA", bulk.Results[2].Result.OptimizedResume)

	var u users.User
	require.NoError(t, e.db.First(&u).Error)
	assert.Zero(t, u.ScanCount, "members are not metered")

	req := httptest.NewRequest(http.MethodGet, "/resume/history", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var history struct {
		Scans []scans.Scan `json:"scans"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Scans, 2)
	assert.Equal(t, "c.txt", history.Scans[0].FileName)
}

func TestBulkScanNeedsFiles(t *testing.T) {
	e := setup(t, func(db *gorm.DB) uint { return testutil.NewUser(t, db, 0).ID })
	w := postMultipart(e.router, "/resume/scan/bulk", map[string]string{"industry": "retail"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
