package server

import (
	"io"
	"net/http"
	"strings"

	templatedomain "github.com/finovo/leaseflow/internal/doctemplate/domain"
	"github.com/gin-gonic/gin"
)

// maxTemplateUpload caps source document uploads at 20 MiB.
const maxTemplateUpload = 20 << 20

func (s *Server) IngestTemplate(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "invalid_file", "missing source document"))
		return
	}
	defer file.Close()

	if header.Size > maxTemplateUpload {
		AbortWithError(c, newValidationError("file", "file_too_large", "source document too large"))
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, maxTemplateUpload))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var clientID *string
	if raw := strings.TrimSpace(c.PostForm("client_id")); raw != "" {
		clientID = &raw
	}

	resp, err := s.templateSvc.Ingest(c.Request.Context(), templatedomain.IngestRequest{
		Name:     strings.TrimSpace(c.PostForm("name")),
		ClientID: clientID,
		FileName: header.Filename,
		Content:  content,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTemplates(c *gin.Context) {
	resp, err := s.templateSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTemplateByID(c *gin.Context) {
	resp, err := s.templateSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ActivateTemplate(c *gin.Context) {
	resp, err := s.templateSvc.Activate(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetActiveTemplate(c *gin.Context) {
	var clientID *string
	if raw := strings.TrimSpace(c.Query("client_id")); raw != "" {
		clientID = &raw
	}

	resp, err := s.templateSvc.GetActive(c.Request.Context(), clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PlaceTemplateField(c *gin.Context) {
	var req templatedomain.PlaceFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.templateSvc.PlaceField(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UnplaceTemplateField(c *gin.Context) {
	resp, err := s.templateSvc.UnplaceField(
		c.Request.Context(),
		strings.TrimSpace(c.Param("id")),
		strings.TrimSpace(c.Param("fieldId")),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetTemplateFieldStyle(c *gin.Context) {
	var style templatedomain.Style
	if err := c.ShouldBindJSON(&style); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.templateSvc.SetFieldStyle(
		c.Request.Context(),
		strings.TrimSpace(c.Param("id")),
		strings.TrimSpace(c.Param("fieldId")),
		style,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CommitTemplateFields(c *gin.Context) {
	var req struct {
		Fields []templatedomain.FieldSpec `json:"fields"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.templateSvc.CommitFields(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.Fields)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
