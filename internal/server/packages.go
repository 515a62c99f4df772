package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	catalogdomain "github.com/smallbiznis/vendorhub/internal/catalog/domain"
)

func (s *Server) ListPackages(c *gin.Context) {
	resp, err := s.catalogSvc.ListPackages(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreatePackage(c *gin.Context) {
	var req catalogdomain.CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ServiceID = strings.TrimSpace(c.Param("id"))
	req.Label = strings.TrimSpace(req.Label)

	resp, err := s.catalogSvc.CreatePackage(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.invalidate(req.ServiceID)

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) DeletePackage(c *gin.Context) {
	serviceID := strings.TrimSpace(c.Param("id"))
	if err := s.catalogSvc.DeletePackage(c.Request.Context(), serviceID, c.Param("package_id")); err != nil {
		AbortWithError(c, err)
		return
	}
	s.invalidate(serviceID)

	c.Status(http.StatusNoContent)
}
