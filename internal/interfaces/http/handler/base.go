package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/interfaces/http/dto"
	"github.com/wms/shopsync/internal/interfaces/http/middleware"
)

// BaseHandler gives handlers the response envelope and request binding.
// Embed it by value.
type BaseHandler struct{}

func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.OK(data))
}

func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.OKPage(data, total, page, pageSize))
}

func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.OK(data))
}

// Accepted answers for work handed to the outbox
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.OK(data))
}

func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.Fail(code, message, middleware.RequestID(c)))
}

func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

func (h *BaseHandler) Unauthorized(c *gin.Context, code, message string) {
	h.Error(c, http.StatusUnauthorized, code, message)
}

// HandleError answers with the code and status mapped to err. Unmapped
// errors become a generic 500 and are attached to the context for the
// access log.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code, message := dto.FromError(err)
	if code == dto.ErrCodeInternal {
		_ = c.Error(err)
		message = "An unexpected error occurred"
	}
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BindJSON and BindQuery report false after writing the validation error
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	return bound(c, c.ShouldBindJSON(req))
}

func (h *BaseHandler) BindQuery(c *gin.Context, req any) bool {
	return bound(c, c.ShouldBindQuery(req))
}

func bound(c *gin.Context, err error) bool {
	if err != nil {
		middleware.HandleValidationError(c, err)
	}
	return err == nil
}

// ParamUUID parses a UUID path parameter, writing a 400 on failure
func (h *BaseHandler) ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// IntegrationGetter loads an integration by id
type IntegrationGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*integration.Integration, error)
}

// scopedIntegration parses :integration_id and loads the integration. A caller
// whose token is limited to one client gets a 404 for any other client's shop.
func (h *BaseHandler) scopedIntegration(c *gin.Context, getter IntegrationGetter) (*integration.Integration, bool) {
	id, ok := h.ParamUUID(c, "integration_id")
	if !ok {
		return nil, false
	}
	in, err := getter.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	if clientID, scoped := middleware.ClientScope(c); scoped && in.ClientID != clientID {
		h.HandleError(c, integration.ErrIntegrationNotFound)
		return nil, false
	}
	return in, true
}
