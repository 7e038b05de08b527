package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	nodeUsecases "github.com/worldvpn/broker/internal/application/node/usecases"
	sessionUsecases "github.com/worldvpn/broker/internal/application/session/usecases"
	"github.com/worldvpn/broker/internal/shared/constants"
	"github.com/worldvpn/broker/internal/shared/logger"
	"github.com/worldvpn/broker/internal/shared/utils"
)

// AgentHandler serves the node agents. Every route behind it is authenticated
// by node token, never by user JWT.
type AgentHandler struct {
	heartbeatUseCase     *nodeUsecases.HeartbeatUseCase
	offlineUseCase       *nodeUsecases.OfflineNodeUseCase
	reportTrafficUseCase *sessionUsecases.ReportTrafficUseCase
	logger               logger.Interface
}

func NewAgentHandler(
	heartbeatUC *nodeUsecases.HeartbeatUseCase,
	offlineUC *nodeUsecases.OfflineNodeUseCase,
	reportTrafficUC *sessionUsecases.ReportTrafficUseCase,
	logger logger.Interface,
) *AgentHandler {
	return &AgentHandler{
		heartbeatUseCase:     heartbeatUC,
		offlineUseCase:       offlineUC,
		reportTrafficUseCase: reportTrafficUC,
		logger:               logger,
	}
}

type HeartbeatRequest struct {
	ReportedConnections uint     `json:"reported_connections"`
	UptimePercent       float64  `json:"uptime_percent" binding:"min=0,max=100"`
	LatencyMs           *float64 `json:"latency_ms" binding:"omitempty,min=0"`
	BandwidthMbps       *float64 `json:"bandwidth_mbps" binding:"omitempty,min=0"`
}

type ReportTrafficRequest struct {
	CumulativeBytes uint64 `json:"cumulative_bytes"`
}

func nodeIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get(constants.ContextKeyNodeID)
	if !exists {
		return 0, false
	}
	nodeID, ok := value.(uint)
	return nodeID, ok
}

// Heartbeat godoc
// @Summary Report agent liveness
// @Description Refreshes the node's liveness window and quality counters
// @Tags agent
// @Accept json
// @Produce json
// @Security NodeToken
// @Param request body HeartbeatRequest true "Heartbeat payload"
// @Success 200 {object} utils.APIResponse
// @Failure 401 {object} utils.APIResponse
// @Router /agent/heartbeat [post]
func (h *AgentHandler) Heartbeat(c *gin.Context) {
	nodeID, ok := nodeIDFromContext(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "node not authenticated")
		return
	}

	var req HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	cmd := nodeUsecases.HeartbeatCommand{
		NodeID:              nodeID,
		ReportedConnections: req.ReportedConnections,
		UptimePercent:       req.UptimePercent,
		LatencyMs:           req.LatencyMs,
		BandwidthMbps:       req.BandwidthMbps,
	}

	result, err := h.heartbeatUseCase.Execute(c.Request.Context(), cmd)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "heartbeat accepted", gin.H{
		"node_sid":   result.NodeSID,
		"online":     result.Online,
		"reputation": result.Reputation,
		"recovered":  result.Recovered,
	})
}

// ReportTraffic godoc
// @Summary Report session traffic
// @Description Ingests a cumulative byte counter for one session; the response says whether the session was closed by a guard
// @Tags agent
// @Accept json
// @Produce json
// @Security NodeToken
// @Param sid path string true "Session SID"
// @Param request body ReportTrafficRequest true "Traffic payload"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 403 {object} utils.APIResponse
// @Router /agent/sessions/{sid}/traffic [post]
func (h *AgentHandler) ReportTraffic(c *gin.Context) {
	nodeID, ok := nodeIDFromContext(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "node not authenticated")
		return
	}

	var req ReportTrafficRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	cmd := sessionUsecases.ReportTrafficCommand{
		NodeID:          nodeID,
		SessionSID:      c.Param("sid"),
		CumulativeBytes: req.CumulativeBytes,
	}

	result, err := h.reportTrafficUseCase.Execute(c.Request.Context(), cmd)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "traffic report processed", gin.H{
		"session_sid":    result.SessionSID,
		"accepted":       result.Accepted,
		"closed":         result.Closed,
		"close_reason":   result.CloseReason,
		"credits_spent":  result.CreditsSpent,
		"credits_earned": result.CreditsEarned,
	})
}

// Offline godoc
// @Summary Announce a graceful shutdown
// @Description Marks the node offline and settles every session it was hosting
// @Tags agent
// @Produce json
// @Security NodeToken
// @Success 200 {object} utils.APIResponse
// @Failure 401 {object} utils.APIResponse
// @Router /agent/offline [post]
func (h *AgentHandler) Offline(c *gin.Context) {
	nodeID, ok := nodeIDFromContext(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "node not authenticated")
		return
	}

	result, err := h.offlineUseCase.Execute(c.Request.Context(), nodeUsecases.OfflineNodeCommand{
		NodeID: nodeID,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "node marked offline", gin.H{
		"node_sid":        result.NodeSID,
		"sessions_closed": result.SessionsClosed,
	})
}
