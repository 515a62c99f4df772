package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	catalogdomain "github.com/smallbiznis/vendorhub/internal/catalog/domain"
	"github.com/smallbiznis/vendorhub/internal/observability/tracing"
	"github.com/smallbiznis/vendorhub/internal/pricingmode"
)

type detectPricingModeRequest struct {
	Content *pricingmode.ScrapedContent `json:"content"`
	URL     string                      `json:"url"`
	Apply   bool                        `json:"apply"`
}

type detectPricingModeResponse struct {
	Mode    catalogdomain.PricingMode `json:"mode"`
	Applied bool                      `json:"applied"`
	Version int64                     `json:"version"`
}

// DetectPricingMode classifies supplied or scraped content. With apply the
// result is stored through a versioned write.
func (s *Server) DetectPricingMode(c *gin.Context) {
	var req detectPricingModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	url := strings.TrimSpace(req.URL)
	if req.Content == nil && url == "" {
		AbortWithError(c, newValidationError("content", "invalid_content", "content or url is required"))
		return
	}

	ctx := c.Request.Context()
	svc, err := s.catalogSvc.Find(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var content pricingmode.ScrapedContent
	if req.Content != nil {
		content = *req.Content
	} else {
		if s.fetcher == nil {
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		content, err = s.fetcher.Fetch(ctx, url)
		if err != nil {
			AbortWithError(c, err)
			return
		}
	}

	mode := s.classifier.Detect(content, *svc)
	c.Set(tracing.SpanKeyPricingMode, string(mode))

	resp := detectPricingModeResponse{Mode: mode, Version: svc.Version}
	if req.Apply && mode != svc.PricingMode {
		res, err := s.writeService(ctx, catalogdomain.WriteRequest{
			ID:              svc.ID.String(),
			Patch:           map[string]any{"pricing_mode": string(mode)},
			ExpectedVersion: svc.Version,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if res.Status == catalogdomain.WriteStatusConflict {
			AbortWithError(c, &VersionConflictError{
				ExpectedVersion: svc.Version,
				CurrentVersion:  res.CurrentVersion,
			})
			return
		}
		resp.Applied = true
		resp.Version = res.Version
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
