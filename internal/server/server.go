// Package server exposes the converter over a small HTTP API.
package server

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rezonia/xrechnung-converter/internal/converter"
	"github.com/rezonia/xrechnung-converter/internal/llm"
	"github.com/rezonia/xrechnung-converter/internal/logger"
	"github.com/rezonia/xrechnung-converter/internal/model"
	"github.com/rezonia/xrechnung-converter/internal/pdf"
	"github.com/rezonia/xrechnung-converter/internal/validator"
)

// Config holds server configuration
type Config struct {
	Address      string
	APIKey       string
	LLMBaseURL   string
	LLMModel     string
	Validator    validator.Config
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server represents the HTTP API server
type Server struct {
	config    *Config
	router    *gin.Engine
	converter *converter.Converter
	validator validator.Validator
	extractor *llm.Extractor
}

// NewServer creates a new API server
func NewServer(config *Config) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	var extractor *llm.Extractor
	if config.APIKey != "" {
		var clientOpts []llm.ClientOption
		if config.LLMBaseURL != "" {
			clientOpts = append(clientOpts, llm.WithBaseURL(config.LLMBaseURL))
		}
		client := llm.NewClient(config.APIKey, clientOpts...)
		extractor = llm.NewExtractor(client, config.LLMModel)
	}

	var kosit validator.Validator
	if config.Validator.JarPath != "" {
		kosit = validator.NewKoSIT(config.Validator, logger.WithComponent("validator"))
	}

	s := &Server{
		config:    config,
		router:    router,
		converter: converter.New(),
		validator: kosit,
		extractor: extractor,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/convert", s.handleConvert())
		v1.POST("/convert/cii", s.handleConvert(model.FormatCII))
		v1.POST("/convert/ubl", s.handleConvert(model.FormatUBL))

		v1.POST("/validate", s.handleValidate)

		v1.POST("/extract/text", s.handleExtractText)
		v1.POST("/extract/pdf", s.handleExtractPDF)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleConvert(formats ...model.OutputFormat) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
			return
		}
		if len(body) == 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
			return
		}

		result, err := s.converter.Convert(body, formats...)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
			return
		}

		resp := ConvertResponse{
			InvoiceID: result.Invoice.Header.ID,
			CII:       string(result.CII),
			UBL:       string(result.UBL),
			Warnings:  result.Warnings,
		}
		if result.CIIErr != nil {
			resp.CIIError = result.CIIErr.Error()
		}
		if result.UBLErr != nil {
			resp.UBLError = result.UBLErr.Error()
		}

		if !result.OK() {
			c.JSON(http.StatusUnprocessableEntity, resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) handleValidate(c *gin.Context) {
	if s.validator == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "KoSIT validator not configured"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return
	}
	if len(body) == 0 || !bytes.HasPrefix(bytes.TrimSpace(body), []byte("<")) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "request body must be an XML document"})
		return
	}

	// The tool works on files; spool the document to a temp path.
	dir, err := os.MkdirTemp("", "validate-*")
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to spool document"})
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "invoice.xml")
	if err := os.WriteFile(path, body, 0600); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to spool document"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	result, err := s.validator.Validate(ctx, path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := ValidateResponse{
		Status:     result.Status,
		Conformant: result.Conformant(),
		ExitCode:   result.ExitCode,
		ReportXML:  result.ReportXML,
		ReportHTML: result.ReportHTML,
		Detail:     result.Detail,
	}
	switch result.Status {
	case validator.StatusToolFailure:
		c.JSON(http.StatusBadGateway, resp)
	case validator.StatusInvalid:
		c.JSON(http.StatusUnprocessableEntity, resp)
	default:
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) handleExtractText(c *gin.Context) {
	if s.extractor == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "LLM extraction not configured"})
		return
	}

	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	record, err := s.extractor.ExtractFromText(ctx, string(body))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ExtractResponse{Record: record})
}

func (s *Server) handleExtractPDF(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return
	}
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "request body must be a PDF document"})
		return
	}

	xml, err := pdf.ExtractInvoiceXML(bytes.NewReader(body))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ExtractResponse{XML: string(xml)})
}
