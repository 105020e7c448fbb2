package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edubridge/campusconnect/internal/connect"
	"github.com/edubridge/campusconnect/internal/data/repos"
	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/http/response"
	ccerrors "github.com/edubridge/campusconnect/internal/pkg/errors"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// DirectoryHandler drives the manual side of directory mapping: tree
// mode selection and node-to-category assignment.
type DirectoryHandler struct {
	log   *logger.Logger
	dirs  repos.DirectoryRepo
	trees *connect.DirectoryTrees
}

func NewDirectoryHandler(log *logger.Logger, dirs repos.DirectoryRepo, trees *connect.DirectoryTrees) *DirectoryHandler {
	return &DirectoryHandler{
		log:   log.With("handler", "DirectoryHandler"),
		dirs:  dirs,
		trees: trees,
	}
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, err)
		return 0, false
	}
	return v, true
}

func mappingStatus(c *gin.Context, err error, code string) {
	switch {
	case errors.Is(err, ccerrors.ErrNotFound):
		response.RespondError(c, http.StatusNotFound, code, err)
	case errors.Is(err, ccerrors.ErrInvalidArgument):
		response.RespondError(c, http.StatusUnprocessableEntity, code, err)
	default:
		response.RespondError(c, http.StatusInternalServerError, code, err)
	}
}

func (h *DirectoryHandler) ListTrees(c *gin.Context) {
	id, ok := brokerIDParam(c)
	if !ok {
		return
	}
	trees, err := h.dirs.ListTrees(c.Request.Context(), nil, id)
	if err != nil {
		h.log.Error("List trees failed", "error", err, "broker_id", id)
		response.RespondError(c, http.StatusInternalServerError, "list_trees_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"trees": trees})
}

type directoryNodeView struct {
	*types.Directory
	Status string `json:"status"`
}

func (h *DirectoryHandler) ListNodes(c *gin.Context) {
	id, ok := brokerIDParam(c)
	if !ok {
		return
	}
	rootID, ok := int64Param(c, "rootID")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	nodes, err := h.dirs.ListNodes(ctx, nil, id, rootID)
	if err != nil {
		h.log.Error("List nodes failed", "error", err, "broker_id", id, "root_id", rootID)
		response.RespondError(c, http.StatusInternalServerError, "list_nodes_failed", err)
		return
	}
	views := make([]directoryNodeView, 0, len(nodes))
	for _, node := range nodes {
		status, err := h.trees.NodeStatus(ctx, id, node)
		if err != nil {
			response.RespondError(c, http.StatusInternalServerError, "node_status_failed", err)
			return
		}
		views = append(views, directoryNodeView{Directory: node, Status: status})
	}
	response.RespondOK(c, gin.H{"nodes": views})
}

type treeModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

func (h *DirectoryHandler) SetMode(c *gin.Context) {
	id, ok := brokerIDParam(c)
	if !ok {
		return
	}
	rootID, ok := int64Param(c, "rootID")
	if !ok {
		return
	}
	var req treeModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.trees.SetTreeMode(c.Request.Context(), id, rootID, req.Mode); err != nil {
		mappingStatus(c, err, "set_tree_mode_failed")
		return
	}
	response.RespondOK(c, gin.H{"root_id": rootID, "mode": req.Mode})
}

type mapCategoryRequest struct {
	CategoryID  int64 `json:"category_id" binding:"required"`
	CreateEmpty bool  `json:"create_empty"`
}

func (h *DirectoryHandler) Map(c *gin.Context) {
	id, ok := brokerIDParam(c)
	if !ok {
		return
	}
	rootID, ok := int64Param(c, "rootID")
	if !ok {
		return
	}
	directoryID, ok := int64Param(c, "directoryID")
	if !ok {
		return
	}
	var req mapCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	// Mappings set through this API are always operator decisions.
	err := h.trees.MapCategory(c.Request.Context(), id, rootID, directoryID, req.CategoryID, true, req.CreateEmpty)
	if err != nil {
		mappingStatus(c, err, "map_category_failed")
		return
	}
	response.RespondOK(c, gin.H{"directory_id": directoryID, "category_id": req.CategoryID})
}

func (h *DirectoryHandler) Unmap(c *gin.Context) {
	id, ok := brokerIDParam(c)
	if !ok {
		return
	}
	rootID, ok := int64Param(c, "rootID")
	if !ok {
		return
	}
	directoryID, ok := int64Param(c, "directoryID")
	if !ok {
		return
	}
	if err := h.trees.Unmap(c.Request.Context(), id, rootID, directoryID); err != nil {
		mappingStatus(c, err, "unmap_failed")
		return
	}
	response.RespondOK(c, gin.H{"directory_id": directoryID})
}
