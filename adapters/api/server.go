package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"abtest/app"
	"abtest/domain/experiment"
	"abtest/internal"
	"abtest/internal/config"
	"abtest/internal/errors"
	"abtest/internal/report"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"
)

// AnalyzeRequest is the body of POST /v1/analyze. Empty group labels and a missing alpha
// fall back to the server configuration.
type AnalyzeRequest struct {
	Records   []map[string]any `json:"records" binding:"required,min=1"`
	Treatment string           `json:"treatment"`
	Control   string           `json:"control"`
	Alpha     *float64         `json:"alpha" binding:"omitempty,gt=0,lt=1"`
}

// ErrorBody is the JSON shape of every failed request
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server exposes the analysis service over HTTP. At most maxRuns analyses run at once;
// requests beyond that are refused with 429 rather than queued.
type Server struct {
	router  *gin.Engine
	service *app.AnalysisService
	runs    *semaphore.Weighted
	logger  *internal.Logger
}

// NewServer wires routes onto a fresh gin engine
func NewServer(service *app.AnalysisService, cfg config.ServerConfig, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	maxRuns := cfg.MaxConcurrentRuns
	if maxRuns < 1 {
		maxRuns = 1
	}

	s := &Server{
		router:  gin.New(),
		service: service,
		runs:    semaphore.NewWeighted(int64(maxRuns)),
		logger:  logger,
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.router.GET("/healthz", s.handleHealth)
	s.router.POST("/v1/analyze", s.handleAnalyze)
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("%s %s -> %d in %.2fms", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), float64(time.Since(start).Nanoseconds())/1e6)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	if !s.runs.TryAcquire(1) {
		c.JSON(http.StatusTooManyRequests, ErrorBody{Code: "OVERLOADED", Message: "too many concurrent analyses, retry later"})
		return
	}
	defer s.runs.Release(1)

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.InvalidInput(err.Error()))
		return
	}

	format, err := report.ParseFormat(c.DefaultQuery("format", string(report.FormatJSON)))
	if err != nil {
		s.writeError(c, errors.InvalidInput(err.Error()))
		return
	}

	svc, err := s.service.WithAnalysis(overrides(s.service.Analysis(), req))
	if err != nil {
		s.writeError(c, err)
		return
	}

	rep, err := svc.Run(c.Request.Context(), tableFromRecords(req.Records))
	if err != nil {
		s.writeError(c, err)
		return
	}

	switch format {
	case report.FormatJSON:
		c.JSON(http.StatusOK, rep)
	default:
		var buf bytes.Buffer
		if err := report.Render(&buf, rep, format); err != nil {
			s.writeError(c, errors.Wrap(err, "failed to render report"))
			return
		}
		c.Data(http.StatusOK, contentType(format), buf.Bytes())
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("analyze failed: %v", err)
	} else {
		s.logger.Debug("analyze rejected (%s): %v", code, err)
	}
	c.JSON(status, ErrorBody{Code: code, Message: err.Error()})
}

func statusFor(code string) int {
	switch code {
	case errors.CodeSchemaError, errors.CodeInvalidInput, errors.CodeConfigInvalid:
		return http.StatusBadRequest
	case errors.CodeInsufficientData, errors.CodeInsufficientSample:
		return http.StatusUnprocessableEntity
	case errors.CodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func contentType(f report.Format) string {
	switch f {
	case report.FormatHTML:
		return "text/html; charset=utf-8"
	case report.FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

func overrides(base config.AnalysisConfig, req AnalyzeRequest) config.AnalysisConfig {
	if req.Treatment != "" {
		base.TreatmentGroup = req.Treatment
	}
	if req.Control != "" {
		base.ControlGroup = req.Control
	}
	if req.Alpha != nil {
		base.Alpha = *req.Alpha
	}
	return base
}

// tableFromRecords flattens JSON records into a raw table; headers are the sorted union of keys
func tableFromRecords(records []map[string]any) experiment.RawTable {
	seen := make(map[string]bool)
	var headers []string
	rows := make([]experiment.RawRow, 0, len(records))
	for _, rec := range records {
		row := make(experiment.RawRow, len(rec))
		for k, v := range rec {
			key := experiment.NormalizeHeader(k)
			if !seen[key] {
				seen[key] = true
				headers = append(headers, key)
			}
			row[key] = cellString(v)
		}
		rows = append(rows, row)
	}
	sort.Strings(headers)
	return experiment.RawTable{Headers: headers, Rows: rows}
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
