package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/worldvpn/broker/internal/application/transparency/usecases"
	"github.com/worldvpn/broker/internal/shared/logger"
	"github.com/worldvpn/broker/internal/shared/utils"
)

// TransparencyHandler serves the public audit surface. No authentication:
// everything it returns is already anonymized by the use cases.
type TransparencyHandler struct {
	statsUseCase *usecases.GetNetworkStatsUseCase
	listUseCase  *usecases.ListPublicSessionsUseCase
	logger       logger.Interface
}

func NewTransparencyHandler(
	statsUC *usecases.GetNetworkStatsUseCase,
	listUC *usecases.ListPublicSessionsUseCase,
	logger logger.Interface,
) *TransparencyHandler {
	return &TransparencyHandler{
		statsUseCase: statsUC,
		listUseCase:  listUC,
		logger:       logger,
	}
}

// GetStats godoc
// @Summary Network-wide statistics
// @Description Node counts per group, active sessions, relayed volume, and credits in circulation
// @Tags transparency
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /transparency/stats [get]
func (h *TransparencyHandler) GetStats(c *gin.Context) {
	result, err := h.statsUseCase.Execute(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "network stats retrieved", gin.H{
		"nodes":                  result.Nodes,
		"active_sessions":        result.ActiveSessions,
		"bytes_relayed_24h":      result.BytesRelayed24h,
		"sessions_closed":        result.SessionsClosed,
		"credits_in_circulation": result.CreditsInCirculation,
	})
}

// ListActiveSessions godoc
// @Summary Currently open sessions, anonymized
// @Tags transparency
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /transparency/sessions [get]
func (h *TransparencyHandler) ListActiveSessions(c *gin.Context) {
	result, err := h.listUseCase.Active(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "sessions retrieved", gin.H{
		"sessions": result.Sessions,
		"total":    len(result.Sessions),
	})
}

// ListSessionHistory godoc
// @Summary Recently closed sessions, anonymized
// @Tags transparency
// @Produce json
// @Param days query int false "History window in days, clamped to the transparency limit"
// @Success 200 {object} utils.APIResponse
// @Router /transparency/history [get]
func (h *TransparencyHandler) ListSessionHistory(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "0"))

	result, err := h.listUseCase.History(c.Request.Context(), days)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "session history retrieved", gin.H{
		"sessions": result.Sessions,
		"total":    len(result.Sessions),
	})
}
