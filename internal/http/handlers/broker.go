package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edubridge/campusconnect/internal/data/repos"
	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/http/response"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

type BrokerHandler struct {
	log     *logger.Logger
	brokers repos.BrokerRepo
}

func NewBrokerHandler(log *logger.Logger, brokers repos.BrokerRepo) *BrokerHandler {
	return &BrokerHandler{
		log:     log.With("handler", "BrokerHandler"),
		brokers: brokers,
	}
}

func brokerIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("brokerID"))
	if err != nil || id <= 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_broker_id", err)
		return 0, false
	}
	return id, true
}

func (h *BrokerHandler) List(c *gin.Context) {
	brokers, err := h.brokers.List(c.Request.Context(), nil)
	if err != nil {
		h.log.Error("List brokers failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "list_brokers_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"brokers": brokers})
}

func (h *BrokerHandler) Get(c *gin.Context) {
	id, ok := brokerIDParam(c)
	if !ok {
		return
	}
	broker, err := h.brokers.Get(c.Request.Context(), nil, id)
	if err != nil {
		h.log.Error("Get broker failed", "error", err, "broker_id", id)
		response.RespondError(c, http.StatusInternalServerError, "get_broker_failed", err)
		return
	}
	if broker == nil {
		response.RespondError(c, http.StatusNotFound, "broker_not_found", nil)
		return
	}
	response.RespondOK(c, broker)
}

type brokerRequest struct {
	Name                  string `json:"name" binding:"required"`
	URL                   string `json:"url" binding:"required"`
	AuthToken             string `json:"auth_token"`
	TokenSecret           string `json:"token_secret"`
	PollIntervalSeconds   int    `json:"poll_interval_seconds"`
	Enabled               *bool  `json:"enabled"`
	CmsMemberID           int    `json:"cms_member_id"`
	ImportCategoryID      int64  `json:"import_category_id"`
	CreateEmptyCategories bool   `json:"create_empty_categories"`
	KeepOrphanedGroups    *bool  `json:"keep_orphaned_groups"`
}

func (h *BrokerHandler) Save(c *gin.Context) {
	id, ok := brokerIDParam(c)
	if !ok {
		return
	}
	var req brokerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	ctx := c.Request.Context()
	broker, err := h.brokers.Get(ctx, nil, id)
	if err != nil {
		h.log.Error("Load broker failed", "error", err, "broker_id", id)
		response.RespondError(c, http.StatusInternalServerError, "save_broker_failed", err)
		return
	}
	now := time.Now()
	if broker == nil {
		broker = &types.BrokerSettings{
			BrokerID:            id,
			PollIntervalSeconds: 60,
			Enabled:             true,
			KeepOrphanedGroups:  true,
			CreatedAt:           now,
		}
	}
	broker.Name = req.Name
	broker.URL = req.URL
	if req.AuthToken != "" {
		broker.AuthToken = req.AuthToken
	}
	if req.TokenSecret != "" {
		broker.TokenSecret = req.TokenSecret
	}
	if req.PollIntervalSeconds > 0 {
		broker.PollIntervalSeconds = req.PollIntervalSeconds
	}
	if req.Enabled != nil {
		broker.Enabled = *req.Enabled
	}
	if req.KeepOrphanedGroups != nil {
		broker.KeepOrphanedGroups = *req.KeepOrphanedGroups
	}
	broker.CmsMemberID = req.CmsMemberID
	broker.ImportCategoryID = req.ImportCategoryID
	broker.CreateEmptyCategories = req.CreateEmptyCategories
	broker.UpdatedAt = now

	if err := h.brokers.Save(ctx, nil, broker); err != nil {
		h.log.Error("Save broker failed", "error", err, "broker_id", id)
		response.RespondError(c, http.StatusInternalServerError, "save_broker_failed", err)
		return
	}
	response.RespondOK(c, broker)
}

func (h *BrokerHandler) Delete(c *gin.Context) {
	id, ok := brokerIDParam(c)
	if !ok {
		return
	}
	if err := h.brokers.Delete(c.Request.Context(), nil, id); err != nil {
		h.log.Error("Delete broker failed", "error", err, "broker_id", id)
		response.RespondError(c, http.StatusInternalServerError, "delete_broker_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": id})
}
