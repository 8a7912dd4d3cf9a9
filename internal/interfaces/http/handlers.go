package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/brokerkit/fundmatch/internal/appparser"
	"github.com/brokerkit/fundmatch/internal/extraction"
	"github.com/brokerkit/fundmatch/internal/matching"
	"github.com/brokerkit/fundmatch/internal/models"
	"github.com/brokerkit/fundmatch/internal/notification"
	"github.com/brokerkit/fundmatch/internal/pipeline"
	"github.com/brokerkit/fundmatch/internal/repository"
)

// Response is the standard JSON envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	adapter    *extraction.Adapter
	parser     *appparser.Parser
	processor  *pipeline.Processor
	engine     *matching.Engine
	drafter    *notification.Drafter
	lenderRepo *repository.LenderRepository
	appRepo    *repository.ApplicationRepository
	logger     *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	adapter *extraction.Adapter,
	parser *appparser.Parser,
	processor *pipeline.Processor,
	engine *matching.Engine,
	drafter *notification.Drafter,
	lenderRepo *repository.LenderRepository,
	appRepo *repository.ApplicationRepository,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		adapter:    adapter,
		parser:     parser,
		processor:  processor,
		engine:     engine,
		drafter:    drafter,
		lenderRepo: lenderRepo,
		appRepo:    appRepo,
		logger:     logger,
	}
}

// currentUser reads the auth collaborator's identity headers. Used purely as
// a filter predicate on lender visibility.
func currentUser(c *gin.Context) (userID string, isAdmin bool) {
	return c.GetHeader("X-User-ID"), c.GetHeader("X-Admin") == "true"
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// ExtractResponse is the single-file extraction result.
type ExtractResponse struct {
	Text         string                      `json:"text"`
	Method       string                      `json:"method"`
	ParsedFields appparser.ParsedApplication `json:"parsed_fields"`
}

// Extract handles POST /api/extract: one file plus its declared type,
// returning raw text and the fields the application parser recovered.
func (h *Handlers) Extract(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "missing file"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unreadable file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unreadable file"})
		return
	}

	declaredType := c.PostForm("type")
	if declaredType == "" {
		declaredType = fileHeader.Header.Get("Content-Type")
	}

	result, err := h.adapter.Extract(c.Request.Context(), extraction.File{
		Name:         fileHeader.Filename,
		Bytes:        data,
		DeclaredType: declaredType,
	})
	if err != nil {
		h.logger.Error("Extraction failed", zap.String("file", fileHeader.Filename), zap.Error(err))
		status := http.StatusInternalServerError
		var upstream *extraction.UpstreamError
		if errors.As(err, &upstream) && upstream.StatusCode == http.StatusTooManyRequests {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, Response{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: ExtractResponse{
			Text:         result.Text,
			Method:       result.Method,
			ParsedFields: h.parser.Parse(result.Text, fileHeader.Filename),
		},
	})
}

// ProcessResponse is the full pipeline result for one upload batch.
type ProcessResponse struct {
	Record     models.ApplicationRecord    `json:"record"`
	Provenance models.ExtractionProvenance `json:"provenance"`
}

// ProcessBatch handles POST /api/process: a multipart batch of documents run
// through the whole pipeline. The record is persisted only when it needs no
// manual review; otherwise the caller gets it back for correction first.
func (h *Handlers) ProcessBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "missing files"})
		return
	}

	var files []extraction.File
	for _, fileHeader := range form.File["files"] {
		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unreadable file: " + fileHeader.Filename})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unreadable file: " + fileHeader.Filename})
			return
		}
		files = append(files, extraction.File{
			Name:         fileHeader.Filename,
			Bytes:        data,
			DeclaredType: fileHeader.Header.Get("Content-Type"),
		})
	}

	record, prov := h.processor.ProcessBatch(c.Request.Context(), files)

	if !prov.RequiresManualEntry {
		if _, err := h.appRepo.Insert(c.Request.Context(), &record); err != nil {
			h.logger.Error("Failed to persist application", zap.Error(err))
			c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to persist application"})
			return
		}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    ProcessResponse{Record: record, Provenance: prov},
	})
}

// Match handles POST /api/match: a confirmed ApplicationRecord scored
// against the caller's visible lenders.
func (h *Handlers) Match(c *gin.Context) {
	var record models.ApplicationRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "malformed application record"})
		return
	}

	userID, isAdmin := currentUser(c)
	ownerScope := userID
	if isAdmin {
		ownerScope = ""
	}

	lenders, err := h.lenderRepo.List(c.Request.Context(), ownerScope)
	if err != nil {
		h.logger.Error("Failed to list lenders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to load lenders"})
		return
	}

	results, err := h.engine.Match(&record, lenders)
	if err != nil {
		var inputErr *matching.InputError
		if errors.As(err, &inputErr) {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: inputErr.Error()})
			return
		}
		h.logger.Error("Matching failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "matching failed"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: results})
}

// DraftSubmissionRequest pairs a stored application with a match result.
type DraftSubmissionRequest struct {
	ApplicationID   int64              `json:"application_id"`
	Match           models.MatchResult `json:"match"`
	AttachmentNames []string           `json:"attachment_names"`
}

// DraftSubmission handles POST /api/submissions/draft.
func (h *Handlers) DraftSubmission(c *gin.Context) {
	var req DraftSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "malformed request"})
		return
	}

	record, err := h.appRepo.Get(c.Request.Context(), req.ApplicationID)
	if err != nil {
		h.logger.Error("Failed to load application", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to load application"})
		return
	}
	if record == nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "application not found"})
		return
	}

	draft := h.drafter.BuildSubmission(record, req.Match, req.AttachmentNames)
	c.JSON(http.StatusOK, Response{Success: true, Data: draft})
}

// ListLenders handles GET /api/lenders
func (h *Handlers) ListLenders(c *gin.Context) {
	userID, isAdmin := currentUser(c)
	ownerScope := userID
	if isAdmin {
		ownerScope = ""
	}

	lenders, err := h.lenderRepo.List(c.Request.Context(), ownerScope)
	if err != nil {
		h.logger.Error("Failed to list lenders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to list lenders"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: lenders})
}

// CreateLender handles POST /api/lenders
func (h *Handlers) CreateLender(c *gin.Context) {
	var lender models.Lender
	if err := c.ShouldBindJSON(&lender); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "malformed lender"})
		return
	}
	userID, _ := currentUser(c)
	lender.OwnerID = userID

	if err := h.lenderRepo.Create(c.Request.Context(), &lender); err != nil {
		h.logger.Error("Failed to create lender", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to create lender"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: lender})
}

// UpdateLender handles PUT /api/lenders/:id
func (h *Handlers) UpdateLender(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid lender id"})
		return
	}

	var lender models.Lender
	if err := c.ShouldBindJSON(&lender); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "malformed lender"})
		return
	}
	lender.ID = id

	if err := h.lenderRepo.Update(c.Request.Context(), &lender); err != nil {
		h.logger.Error("Failed to update lender", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to update lender"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: lender})
}

// DeleteLender handles DELETE /api/lenders/:id
func (h *Handlers) DeleteLender(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid lender id"})
		return
	}

	if err := h.lenderRepo.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("Failed to delete lender", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to delete lender"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}
