package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brokerkit/fundmatch/internal/appparser"
	"github.com/brokerkit/fundmatch/internal/bankanalysis"
	"github.com/brokerkit/fundmatch/internal/extraction"
	"github.com/brokerkit/fundmatch/internal/matching"
	"github.com/brokerkit/fundmatch/internal/models"
	"github.com/brokerkit/fundmatch/internal/notification"
	"github.com/brokerkit/fundmatch/internal/pipeline"
	"github.com/brokerkit/fundmatch/internal/reconcile"
	"github.com/brokerkit/fundmatch/internal/repository"
	"github.com/brokerkit/fundmatch/pkg/database"
)

func setupTestServer(t *testing.T, ocr extraction.OCRClient) (*gin.Engine, *repository.LenderRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).RunMigrations())

	adapter := extraction.NewAdapter(ocr, logger)
	parser := appparser.NewParser(logger)
	analyzer := bankanalysis.NewAnalyzer(true, logger)
	reconciler := reconcile.NewReconciler(logger)
	processor := pipeline.NewProcessor(adapter, parser, analyzer, reconciler, nil, 2, logger)

	appRepo := repository.NewApplicationRepository(db.DB, logger)
	lenderRepo := repository.NewLenderRepository(db, logger)
	engine := matching.NewEngine(logger)
	drafter := notification.NewDrafter("FundMatch", logger)

	handlers := NewHandlers(adapter, parser, processor, engine, drafter, lenderRepo, appRepo, logger)
	server := NewServer(ServerConfig{Host: "127.0.0.1", Port: 0}, handlers, logger)

	return server.router, lenderRepo
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandlers_HealthCheck(t *testing.T) {
	router, _ := setupTestServer(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)
}

func TestHandlers_Extract(t *testing.T) {
	router, _ := setupTestServer(t, nil)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "application.txt")
	require.NoError(t, err)
	part.Write([]byte("Business Name: Acme Corp\nCredit Score: 700"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/extract", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var extracted ExtractResponse
	require.NoError(t, json.Unmarshal(data, &extracted))

	assert.Equal(t, "text", extracted.Method)
	assert.Contains(t, extracted.Text, "Acme Corp")
	require.NotNil(t, extracted.ParsedFields.BusinessName)
	assert.Equal(t, "Acme Corp", *extracted.ParsedFields.BusinessName)
}

func TestHandlers_Extract_MissingFile(t *testing.T) {
	router, _ := setupTestServer(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/extract", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decodeResponse(t, rec).Success)
}

// rateLimitedOCR always reports an upstream 429.
type rateLimitedOCR struct{}

func (rateLimitedOCR) RecognizeText(context.Context, [][]byte) (string, error) {
	return "", &extraction.UpstreamError{StatusCode: http.StatusTooManyRequests, Err: errors.New("rate limited")}
}

func TestHandlers_Extract_UpstreamRateLimit(t *testing.T) {
	router, _ := setupTestServer(t, rateLimitedOCR{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "scan.png")
	require.NoError(t, err)
	part.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/extract", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, decodeResponse(t, rec).Success)
}

func TestHandlers_Match(t *testing.T) {
	router, lenderRepo := setupTestServer(t, nil)

	minScore := 650
	require.NoError(t, lenderRepo.Create(context.Background(), &models.Lender{
		OwnerID:  "broker-1",
		Name:     "Summit Capital",
		Criteria: &models.LenderCriteria{MinCreditScore: &minScore},
	}))

	record := models.ApplicationRecord{
		BusinessName:      "Acme Corp",
		State:             "CA",
		Industry:          "Restaurant",
		TimeInBusiness:    36,
		CreditScore:       700,
		AvgDailyBalance:   8000,
		AvgMonthlyRevenue: 40000,
		FundingRequested:  50000,
	}
	body, err := json.Marshal(record)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/match", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "broker-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var results []models.MatchResult
	require.NoError(t, json.Unmarshal(data, &results))

	require.Len(t, results, 1)
	assert.Equal(t, 100, results[0].MatchScore)
}

func TestHandlers_Match_InvalidRecord(t *testing.T) {
	router, _ := setupTestServer(t, nil)

	body := []byte(`{"business_name":"Acme","credit_score":0,"state":"CA","funding_requested":1000}`)
	req := httptest.NewRequest(http.MethodPost, "/api/match", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeResponse(t, rec).Error, "creditScore")
}

func TestHandlers_Match_OwnerScoping(t *testing.T) {
	router, lenderRepo := setupTestServer(t, nil)

	require.NoError(t, lenderRepo.Create(context.Background(), &models.Lender{OwnerID: "broker-1", Name: "Mine"}))
	require.NoError(t, lenderRepo.Create(context.Background(), &models.Lender{OwnerID: "broker-2", Name: "Theirs"}))

	record := models.ApplicationRecord{
		BusinessName: "Acme Corp", State: "CA", Industry: "Retail",
		CreditScore: 700, FundingRequested: 50000,
	}
	body, _ := json.Marshal(record)

	send := func(userID string, admin bool) []models.MatchResult {
		req := httptest.NewRequest(http.MethodPost, "/api/match", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", userID)
		if admin {
			req.Header.Set("X-Admin", "true")
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		data, err := json.Marshal(decodeResponse(t, rec).Data)
		require.NoError(t, err)
		var results []models.MatchResult
		require.NoError(t, json.Unmarshal(data, &results))
		return results
	}

	assert.Len(t, send("broker-1", false), 1)
	assert.Len(t, send("broker-1", true), 2)
}

func TestHandlers_LenderCRUD(t *testing.T) {
	router, _ := setupTestServer(t, nil)

	createBody := []byte(`{"name":"Summit Capital","contact_email":"deals@summit.example","criteria":{"min_credit_score":650}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/lenders", bytes.NewReader(createBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "broker-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	data, err := json.Marshal(decodeResponse(t, rec).Data)
	require.NoError(t, err)
	var created models.Lender
	require.NoError(t, json.Unmarshal(data, &created))
	require.Greater(t, created.ID, int64(0))
	assert.Equal(t, "broker-1", created.OwnerID)

	listReq := httptest.NewRequest(http.MethodGet, "/api/lenders", nil)
	listReq.Header.Set("X-User-ID", "broker-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, listReq)
	require.Equal(t, http.StatusOK, rec.Code)

	delReq := httptest.NewRequest(http.MethodDelete, "/api/lenders/1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, delReq)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlers_UpdateLender_InvalidID(t *testing.T) {
	router, _ := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/lenders/abc", bytes.NewReader([]byte(`{"name":"x"}`)))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
