package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/ingestion"
)

type errorResponse struct {
	Error string `json:"error"`
	Cause string `json:"cause,omitempty"`
}

// writeError maps validation errors to 400, retrieval errors to 503 with
// their cause, unknown tasks to 404 and everything else to 500.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := errorResponse{Error: err.Error()}

	var re *core.RetrievalError
	switch {
	case core.IsValidationError(err):
		status = http.StatusBadRequest
	case errors.As(err, &re):
		status = http.StatusServiceUnavailable
		body.Cause = re.Cause.String()
	case errors.Is(err, ingestion.ErrTaskNotFound):
		status = http.StatusNotFound
	}
	c.JSON(status, body)
}

type queryBody struct {
	Query      string            `json:"query"`
	Mode       core.QueryMode    `json:"mode"`
	MaxResults int               `json:"max_results"`
	Filters    map[string]string `json:"filters"`
}

func (s *Server) query(c *gin.Context) {
	var body queryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if body.Mode == "" {
		body.Mode = core.QueryModeHybrid
	}

	result, err := s.service.Query(c.Request.Context(), core.QueryRequest{
		Text:    body.Query,
		Mode:    body.Mode,
		Limit:   body.MaxResults,
		Filters: body.Filters,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) queryTest(c *gin.Context) {
	report := s.service.Health(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":                 "operational",
		"vector_store_connected": report.Services["vector_store"],
		"graph_store_connected":  report.Services["graph_store"],
	})
}

type ingestBody struct {
	FileName string         `json:"file_name"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type ingestResponse struct {
	TaskID  string              `json:"task_id"`
	Status  ingestion.TaskState `json:"status"`
	Message string              `json:"message"`
}

func (s *Server) ingestDocument(c *gin.Context) {
	var body ingestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if strings.TrimSpace(body.FileName) == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "file_name is required"})
		return
	}
	if !utf8.ValidString(body.Content) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "only plain-text documents are supported"})
		return
	}
	for key, value := range body.Metadata {
		switch value.(type) {
		case string, bool, float64:
		default:
			c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("metadata %q must be a string, number or boolean", key)})
			return
		}
	}

	taskID, err := s.service.Submit(c.Request.Context(), core.Document{
		Name:     body.FileName,
		Content:  body.Content,
		Metadata: core.Metadata(body.Metadata),
	})
	if err != nil {
		if errors.Is(err, core.ErrInvalidDocument) || errors.Is(err, core.ErrEmptyContent) {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, ingestResponse{
		TaskID:  taskID,
		Status:  ingestion.TaskPending,
		Message: fmt.Sprintf("Document '%s' queued for processing", body.FileName),
	})
}

func (s *Server) taskStatus(c *gin.Context) {
	status, err := s.service.TaskStatus(c.Param("task_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Health(c.Request.Context()))
}

func (s *Server) liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readiness(c *gin.Context) {
	if err := s.service.Ready(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
