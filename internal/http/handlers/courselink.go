package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edubridge/campusconnect/internal/connect"
	"github.com/edubridge/campusconnect/internal/data/repos"
	"github.com/edubridge/campusconnect/internal/ecs"
	"github.com/edubridge/campusconnect/internal/http/response"
	ccerrors "github.com/edubridge/campusconnect/internal/pkg/errors"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// CourseLinkHandler serves the user-facing side of imported course
// links: the redirect into the remote host, and verification of tokens
// presented by users arriving from a remote participant.
type CourseLinkHandler struct {
	log     *logger.Logger
	brokers repos.BrokerRepo
	links   *connect.CourseLinks
	clients connect.ClientFactory
}

func NewCourseLinkHandler(log *logger.Logger, brokers repos.BrokerRepo, links *connect.CourseLinks, clients connect.ClientFactory) *CourseLinkHandler {
	return &CourseLinkHandler{
		log:     log.With("handler", "CourseLinkHandler"),
		brokers: brokers,
		links:   links,
		clients: clients,
	}
}

// Redirect registers a short-lived auth token for the visiting user at
// the broker and sends them to the remote course URL.
func (h *CourseLinkHandler) Redirect(c *gin.Context) {
	brokerID, ok := brokerIDParam(c)
	if !ok {
		return
	}
	courseID, ok := int64Param(c, "courseID")
	if !ok {
		return
	}
	personID := c.Query("person_id")
	if personID == "" {
		response.RespondError(c, http.StatusBadRequest, "person_id_required", nil)
		return
	}
	personIDType := c.DefaultQuery("person_id_type", "uid")

	broker, err := h.brokers.Get(c.Request.Context(), nil, brokerID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "get_broker_failed", err)
		return
	}
	if broker == nil {
		response.RespondError(c, http.StatusNotFound, "broker_not_found", nil)
		return
	}

	pc := connect.NewPassContext(broker, h.clients(broker))
	target, err := h.links.RedirectURL(c.Request.Context(), pc, courseID, personID, personIDType)
	if err != nil {
		if errors.Is(err, ccerrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "course_link_not_found", err)
			return
		}
		h.log.Error("Course link redirect failed", "error", err,
			"broker_id", brokerID, "course_id", courseID)
		response.RespondError(c, http.StatusBadGateway, "redirect_failed", err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

type verifyTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyToken validates an inbound auth token against the broker's
// shared secret and returns its payload, so the host can admit the
// visiting user into the exported course.
func (h *CourseLinkHandler) VerifyToken(c *gin.Context) {
	brokerID, ok := brokerIDParam(c)
	if !ok {
		return
	}
	var req verifyTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	broker, err := h.brokers.Get(c.Request.Context(), nil, brokerID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "get_broker_failed", err)
		return
	}
	if broker == nil {
		response.RespondError(c, http.StatusNotFound, "broker_not_found", nil)
		return
	}

	payload, err := ecs.VerifyAuthToken(req.Token, broker.TokenSecret)
	if err != nil {
		response.RespondError(c, http.StatusUnauthorized, "invalid_token", err)
		return
	}
	response.RespondOK(c, payload)
}
