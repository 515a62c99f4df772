package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/vendorhub/internal/autosave"
	catalogdomain "github.com/smallbiznis/vendorhub/internal/catalog/domain"
	"github.com/smallbiznis/vendorhub/internal/observability/tracing"
)

// openEditor returns the autosave session for a service, loading the stored
// record the first time it is opened.
func (s *Server) openEditor(ctx context.Context, id string) (*autosave.Coordinator, error) {
	id = strings.TrimSpace(id)
	if c, ok := s.editors.Get(entityKey(id)); ok {
		return c, nil
	}

	svc, err := s.catalogSvc.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	c, created, err := s.editors.Open(entityKey(id), editorSnapshot(svc), s.editorSave(svc.ID.String()))
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Debug("editor session opened", zap.String("service_id", id), zap.Int64("version", svc.Version))
	}
	return c, nil
}

func (s *Server) editorSave(id string) autosave.SaveFunc {
	return func(ctx context.Context, patch autosave.Patch, expectedVersion int64) autosave.Result {
		res, err := s.writeService(ctx, catalogdomain.WriteRequest{
			ID:              id,
			Patch:           patch,
			ExpectedVersion: expectedVersion,
		})
		if err != nil {
			return autosave.Failed(err)
		}
		if res.Status == catalogdomain.WriteStatusConflict {
			return autosave.Conflicted(res.CurrentVersion)
		}
		return autosave.Saved(res.Version)
	}
}

// editorSnapshot projects the editable fields of svc.
func editorSnapshot(svc *catalogdomain.Service) autosave.Snapshot {
	record := autosave.Record{
		"title":              svc.Title,
		"description":        optionalString(svc.Description),
		"website_url":        optionalString(svc.WebsiteURL),
		"retail_price":       svc.RetailPrice,
		"pro_price":          optionalString(svc.ProPrice),
		"co_pay_price":       optionalString(svc.CoPayPrice),
		"default_package_id": nil,
		"pricing_mode":       string(svc.PricingMode),
	}
	if svc.DefaultPackageID != nil {
		record["default_package_id"] = svc.DefaultPackageID.String()
	}
	return autosave.Snapshot{Value: record, Version: svc.Version}
}

func optionalString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

type editorChangesRequest struct {
	Changes map[string]any `json:"changes"`
}

func (s *Server) GetEditorState(c *gin.Context) {
	editor, err := s.openEditor(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondEditor(c, http.StatusOK, editor)
}

func (s *Server) ApplyEditorChanges(c *gin.Context) {
	var req editorChangesRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Changes) == 0 {
		AbortWithError(c, invalidRequestError())
		return
	}
	for field := range req.Changes {
		if !editableField(field) {
			AbortWithError(c, newValidationError(field, "invalid_patch", "field is not editable"))
			return
		}
	}

	editor, err := s.openEditor(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := editor.Apply(autosave.Patch(req.Changes)); err != nil {
		AbortWithError(c, err)
		return
	}

	respondEditor(c, http.StatusAccepted, editor)
}

func (s *Server) FlushEditor(c *gin.Context) {
	editor, err := s.openEditor(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := editor.Flush(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}

	respondEditor(c, http.StatusOK, editor)
}

type refreshEditorRequest struct {
	KeepLocal bool `json:"keep_local"`
}

// RefreshEditor reloads the stored record into the session, clearing a
// version conflict.
func (s *Server) RefreshEditor(c *gin.Context) {
	var req refreshEditorRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	ctx := c.Request.Context()
	editor, err := s.openEditor(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	s.invalidate(id)
	svc, err := s.catalogSvc.Find(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := editor.Refresh(ctx, editorSnapshot(svc), req.KeepLocal); err != nil {
		AbortWithError(c, err)
		return
	}

	respondEditor(c, http.StatusOK, editor)
}

func (s *Server) DrainEditorNotices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.feed.Drain(entityKey(c.Param("id")))})
}

// CloseEditor flushes pending edits and ends the session.
func (s *Server) CloseEditor(c *gin.Context) {
	key := entityKey(c.Param("id"))
	if err := s.editors.Close(c.Request.Context(), key); err != nil && !errors.Is(err, autosave.ErrClosed) {
		AbortWithError(c, err)
		return
	}
	s.feed.Forget(key)

	c.Status(http.StatusNoContent)
}

func editableField(field string) bool {
	switch field {
	case "title", "description", "website_url", "retail_price",
		"pro_price", "co_pay_price", "default_package_id", "pricing_mode":
		return true
	default:
		return false
	}
}

func respondEditor(c *gin.Context, status int, editor *autosave.Coordinator) {
	st := editor.Status()
	c.Set(tracing.SpanKeyEditorState, string(st.State))
	c.JSON(status, gin.H{"data": st})
}
