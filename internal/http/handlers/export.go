package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edubridge/campusconnect/internal/connect"
	"github.com/edubridge/campusconnect/internal/http/response"
	ccerrors "github.com/edubridge/campusconnect/internal/pkg/errors"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// ExportHandler selects which broker participants a local course is
// exported to. The next sync pass flushes the resulting diff.
type ExportHandler struct {
	log     *logger.Logger
	exports *connect.Exports
}

func NewExportHandler(log *logger.Logger, exports *connect.Exports) *ExportHandler {
	return &ExportHandler{
		log:     log.With("handler", "ExportHandler"),
		exports: exports,
	}
}

type exportTargetsRequest struct {
	Members []int `json:"members"`
}

func (h *ExportHandler) SetTargets(c *gin.Context) {
	id, ok := brokerIDParam(c)
	if !ok {
		return
	}
	courseID, ok := int64Param(c, "courseID")
	if !ok {
		return
	}
	var req exportTargetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.exports.SetTargets(c.Request.Context(), id, courseID, req.Members); err != nil {
		if errors.Is(err, ccerrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "course_not_found", err)
			return
		}
		h.log.Error("Set export targets failed", "error", err, "broker_id", id, "course_id", courseID)
		response.RespondError(c, http.StatusInternalServerError, "set_targets_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"course_id": courseID, "members": req.Members})
}
