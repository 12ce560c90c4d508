package server

import (
	"net/http"
	"strings"

	generationdomain "github.com/finovo/leaseflow/internal/generation/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) GenerateDocument(c *gin.Context) {
	var req generationdomain.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.generationSvc.Generate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDocumentByID(c *gin.Context) {
	resp, err := s.generationSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DownloadDocument(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	content, err := s.generationSvc.Download(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+id+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", content)
}
