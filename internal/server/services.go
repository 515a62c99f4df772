package server

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	catalogdomain "github.com/smallbiznis/vendorhub/internal/catalog/domain"
	"github.com/smallbiznis/vendorhub/internal/observability/tracing"
	"github.com/smallbiznis/vendorhub/internal/pricesheet"
	"github.com/smallbiznis/vendorhub/internal/pricing"
	"github.com/smallbiznis/vendorhub/internal/pricingmode"
)

func (s *Server) ListServices(c *gin.Context) {
	var query struct {
		Title       string `form:"title"`
		PricingMode string `form:"pricing_mode"`
		SortBy      string `form:"sort_by"`
		OrderBy     string `form:"order_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.List(c.Request.Context(), catalogdomain.ListRequest{
		Title:       strings.TrimSpace(query.Title),
		PricingMode: strings.TrimSpace(query.PricingMode),
		SortBy:      strings.TrimSpace(query.SortBy),
		OrderBy:     strings.TrimSpace(query.OrderBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetService accepts either a numeric id or a slug.
func (s *Server) GetService(c *gin.Context) {
	ref := strings.TrimSpace(c.Param("id"))

	var (
		resp *catalogdomain.Response
		err  error
	)
	if isSnowflakeID(ref) {
		resp, err = s.catalogSvc.Get(c.Request.Context(), ref)
	} else {
		resp, err = s.catalogSvc.GetBySlug(c.Request.Context(), ref)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type pricingResponse struct {
	Package     *catalogdomain.PackageResponse `json:"package"`
	Prices      pricing.Prices                 `json:"prices"`
	PricingMode catalogdomain.PricingMode      `json:"pricing_mode"`
}

func (s *Server) GetServicePricing(c *gin.Context) {
	requested, err := parseOptionalSnowflakeID(c.Query("package_id"))
	if err != nil {
		AbortWithError(c, newValidationError("package_id", "invalid_package_id", "invalid package id"))
		return
	}
	isPro, err := parseOptionalBool(c.Query("pro"))
	if err != nil {
		AbortWithError(c, newValidationError("pro", "invalid_pro", "invalid pro"))
		return
	}

	svc, err := s.loadService(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var requestedID snowflake.ID
	if requested != nil {
		requestedID = *requested
	}
	resolution := pricing.ResolvePricing(*svc, requestedID, boolValue(isPro))
	mode := s.effectiveMode(*svc)
	c.Set(tracing.SpanKeyPricingMode, string(mode))

	resp := pricingResponse{
		Prices:      resolution.Prices,
		PricingMode: mode,
	}
	if resolution.Package != nil {
		pkg := catalogdomain.NewPackageResponse(resolution.Package)
		resp.Package = &pkg
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// effectiveMode classifies services left on auto from their own packages
// and copy.
func (s *Server) effectiveMode(svc catalogdomain.Service) catalogdomain.PricingMode {
	if svc.PricingMode != catalogdomain.PricingModeAuto && svc.PricingMode != "" {
		return svc.PricingMode
	}
	return s.classifier.Detect(contentFromService(svc), svc)
}

func contentFromService(svc catalogdomain.Service) pricingmode.ScrapedContent {
	content := pricingmode.ScrapedContent{
		Title:   svc.Title,
		Content: svc.RetailPrice,
	}
	if svc.Description != nil {
		content.Description = *svc.Description
	}
	for _, pkg := range svc.Packages {
		tier := pricingmode.ScrapedTier{Name: pkg.Label}
		if pkg.RetailPrice != nil {
			tier.Price = "$" + decimal.NewFromFloat(*pkg.RetailPrice).StringFixed(2)
		}
		for _, feature := range pkg.Features {
			included := feature.Included
			tier.Features = append(tier.Features, catalogdomain.ObjectFeature(catalogdomain.FeatureObject{
				Text:     feature.Text,
				Included: &included,
			}))
		}
		content.PricingTiers = append(content.PricingTiers, tier)
	}
	return content
}

func (s *Server) GetServicePriceSheet(c *gin.Context) {
	isPro, err := parseOptionalBool(c.Query("pro"))
	if err != nil {
		AbortWithError(c, newValidationError("pro", "invalid_pro", "invalid pro"))
		return
	}

	svc, err := s.loadService(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	reader, err := s.renderer.Render(c.Request.Context(), *svc, boolValue(isPro))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+pricesheet.Filename(*svc)+`"`)
	c.DataFromReader(http.StatusOK, int64(len(body)), "application/pdf", bytes.NewReader(body), nil)
}

func (s *Server) CreateService(c *gin.Context) {
	var req catalogdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

type patchServiceRequest struct {
	Patch           map[string]any `json:"patch"`
	ExpectedVersion int64          `json:"expected_version"`
}

func (s *Server) PatchService(c *gin.Context) {
	var req patchServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	res, err := s.writeService(c.Request.Context(), catalogdomain.WriteRequest{
		ID:              id,
		Patch:           req.Patch,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if res.Status == catalogdomain.WriteStatusConflict {
		AbortWithError(c, &VersionConflictError{
			ExpectedVersion: req.ExpectedVersion,
			CurrentVersion:  res.CurrentVersion,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"version": res.Version}})
}
