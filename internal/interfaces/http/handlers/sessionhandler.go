package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/worldvpn/broker/internal/application/session/usecases"
	"github.com/worldvpn/broker/internal/shared/constants"
	"github.com/worldvpn/broker/internal/shared/logger"
	"github.com/worldvpn/broker/internal/shared/utils"
)

type SessionHandler struct {
	connectUseCase    *usecases.ConnectUseCase
	disconnectUseCase *usecases.DisconnectUseCase
	listUseCase       *usecases.ListMySessionsUseCase
	logger            logger.Interface
}

func NewSessionHandler(
	connectUC *usecases.ConnectUseCase,
	disconnectUC *usecases.DisconnectUseCase,
	listUC *usecases.ListMySessionsUseCase,
	logger logger.Interface,
) *SessionHandler {
	return &SessionHandler{
		connectUseCase:    connectUC,
		disconnectUseCase: disconnectUC,
		listUseCase:       listUC,
		logger:            logger,
	}
}

type ConnectRequest struct {
	ClientCountry  string  `json:"client_country" binding:"required,countrycode"`
	ClientIdentity string  `json:"client_identity" binding:"required"`
	Protocol       string  `json:"protocol" binding:"required"`
	TrafficClass   string  `json:"traffic_class" binding:"required"`
	NodeCountry    *string `json:"node_country" binding:"omitempty,countrycode"`
	Group          *string `json:"group"`
}

// Connect godoc
// @Summary Request a relay session
// @Description Matches the caller to a node, reserves capacity, and returns the connection material
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ConnectRequest true "Connect payload"
// @Success 201 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 402 {object} utils.APIResponse
// @Failure 503 {object} utils.APIResponse
// @Router /sessions [post]
func (h *SessionHandler) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	cmd := usecases.ConnectCommand{
		UserSID:        c.GetString(constants.ContextKeyUserSID),
		ClientCountry:  req.ClientCountry,
		ClientIdentity: req.ClientIdentity,
		Protocol:       req.Protocol,
		TrafficClass:   req.TrafficClass,
		NodeCountry:    req.NodeCountry,
		Group:          req.Group,
	}

	result, err := h.connectUseCase.Execute(c.Request.Context(), cmd)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "session brokered", gin.H{
		"session_sid":     result.SessionSID,
		"node_sid":        result.NodeSID,
		"node_country":    result.NodeCountry,
		"protocol":        result.Protocol,
		"assigned_ip":     result.AssignedIP,
		"server_endpoint": result.ServerEndpoint,
	})
}

// Disconnect godoc
// @Summary Close the caller's session
// @Description Settles the session; closing an already-closed session returns the settled amounts again
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param sid path string true "Session SID"
// @Success 200 {object} utils.APIResponse
// @Failure 403 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Router /sessions/{sid} [delete]
func (h *SessionHandler) Disconnect(c *gin.Context) {
	cmd := usecases.DisconnectCommand{
		UserSID:    c.GetString(constants.ContextKeyUserSID),
		SessionSID: c.Param("sid"),
	}

	result, err := h.disconnectUseCase.Execute(c.Request.Context(), cmd)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "session closed", gin.H{
		"session_sid":    result.SessionSID,
		"credits_spent":  result.CreditsSpent,
		"credits_earned": result.CreditsEarned,
		"already_closed": result.AlreadyClosed,
	})
}

// ListMine godoc
// @Summary List the caller's open sessions
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} utils.APIResponse
// @Router /sessions [get]
func (h *SessionHandler) ListMine(c *gin.Context) {
	result, err := h.listUseCase.Execute(c.Request.Context(), usecases.ListMySessionsQuery{
		UserSID: c.GetString(constants.ContextKeyUserSID),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "sessions retrieved", gin.H{
		"sessions": result.Sessions,
		"total":    len(result.Sessions),
	})
}
