package server

import (
	"net/http"
	"strings"

	leaserdomain "github.com/finovo/leaseflow/internal/leaser/domain"
	"github.com/finovo/leaseflow/internal/pricing"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (s *Server) CreateLeaser(c *gin.Context) {
	var req leaserdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.leaserSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListLeasers(c *gin.Context) {
	resp, err := s.leaserSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLeaserByID(c *gin.Context) {
	resp, err := s.leaserSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReplaceLeaserRanges(c *gin.Context) {
	var req struct {
		Ranges []leaserdomain.RangeInput `json:"ranges"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.leaserSvc.ReplaceRanges(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.Ranges)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeprecateLeaser(c *gin.Context) {
	if err := s.leaserSvc.Deprecate(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deprecated": true}})
}

// QuoteLeaser prices an amount against the leaser's range table without
// creating anything. Used by the offer form for live previews.
func (s *Server) QuoteLeaser(c *gin.Context) {
	amount, err := decimal.NewFromString(strings.TrimSpace(c.Query("amount")))
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "invalid amount"))
		return
	}

	set, err := s.leaserSvc.RangeSet(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	quote, err := pricing.Resolve(set, amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"amount":          amount,
		"coefficient":     quote.Coefficient,
		"monthly_payment": quote.MonthlyPayment,
	}})
}
