package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edubridge/campusconnect/internal/connect"
	"github.com/edubridge/campusconnect/internal/data/repos"
	"github.com/edubridge/campusconnect/internal/http/response"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// SyncHandler exposes manual sync and refresh triggers next to the
// scheduled passes.
type SyncHandler struct {
	log     *logger.Logger
	brokers repos.BrokerRepo
	syncer  *connect.Syncer
	queue   *connect.EventQueue
}

func NewSyncHandler(log *logger.Logger, brokers repos.BrokerRepo, syncer *connect.Syncer, queue *connect.EventQueue) *SyncHandler {
	return &SyncHandler{
		log:     log.With("handler", "SyncHandler"),
		brokers: brokers,
		syncer:  syncer,
		queue:   queue,
	}
}

func (h *SyncHandler) RunAll(c *gin.Context) {
	if err := h.syncer.RunAll(c.Request.Context()); err != nil {
		h.log.Error("Manual sync failed", "error", err)
		response.RespondError(c, http.StatusBadGateway, "sync_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"status": "ok"})
}

func (h *SyncHandler) RunBroker(c *gin.Context) {
	id, ok := brokerIDParam(c)
	if !ok {
		return
	}
	broker, err := h.brokers.Get(c.Request.Context(), nil, id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "get_broker_failed", err)
		return
	}
	if broker == nil {
		response.RespondError(c, http.StatusNotFound, "broker_not_found", nil)
		return
	}
	if err := h.syncer.RunPass(c.Request.Context(), broker); err != nil {
		h.log.Error("Manual sync pass failed", "error", err, "broker_id", id)
		response.RespondError(c, http.StatusBadGateway, "sync_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"status": "ok", "broker_id": id})
}

func (h *SyncHandler) Refresh(c *gin.Context) {
	id, ok := brokerIDParam(c)
	if !ok {
		return
	}
	broker, err := h.brokers.Get(c.Request.Context(), nil, id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "get_broker_failed", err)
		return
	}
	if broker == nil {
		response.RespondError(c, http.StatusNotFound, "broker_not_found", nil)
		return
	}
	report, err := h.syncer.RunRefresh(c.Request.Context(), broker)
	if err != nil {
		h.log.Error("Manual refresh failed", "error", err, "broker_id", id)
		response.RespondError(c, http.StatusBadGateway, "refresh_failed", err)
		return
	}
	response.RespondOK(c, report)
}

// QueueDepths reports per-broker backlog, the primary liveness signal
// of the connector.
func (h *SyncHandler) QueueDepths(c *gin.Context) {
	depths, err := h.queue.Depths(c.Request.Context())
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "queue_depths_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"depths": depths})
}
