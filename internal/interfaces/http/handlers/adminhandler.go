package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ledgerUsecases "github.com/worldvpn/broker/internal/application/ledger/usecases"
	nodeUsecases "github.com/worldvpn/broker/internal/application/node/usecases"
	"github.com/worldvpn/broker/internal/shared/logger"
	"github.com/worldvpn/broker/internal/shared/utils"
)

type AdminHandler struct {
	adjustCreditsUseCase   *ledgerUsecases.AdjustCreditsUseCase
	verifyLedgerUseCase    *ledgerUsecases.VerifyLedgerUseCase
	setNodeDisabledUseCase *nodeUsecases.SetNodeDisabledUseCase
	logger                 logger.Interface
}

func NewAdminHandler(
	adjustCreditsUC *ledgerUsecases.AdjustCreditsUseCase,
	verifyLedgerUC *ledgerUsecases.VerifyLedgerUseCase,
	setNodeDisabledUC *nodeUsecases.SetNodeDisabledUseCase,
	logger logger.Interface,
) *AdminHandler {
	return &AdminHandler{
		adjustCreditsUseCase:   adjustCreditsUC,
		verifyLedgerUseCase:    verifyLedgerUC,
		setNodeDisabledUseCase: setNodeDisabledUC,
		logger:                 logger,
	}
}

type AdjustCreditsRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required,min=3,max=256"`
}

// AdjustCredits godoc
// @Summary Post a manual ledger entry
// @Description Positive amounts post a BONUS, negative a PENALTY; overdrawing penalties are rejected
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sid path string true "User SID"
// @Param request body AdjustCreditsRequest true "Adjustment payload"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 402 {object} utils.APIResponse
// @Router /admin/users/{sid}/credits [post]
func (h *AdminHandler) AdjustCredits(c *gin.Context) {
	var req AdjustCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	cmd := ledgerUsecases.AdjustCreditsCommand{
		UserSID: c.Param("sid"),
		Amount:  req.Amount,
		Reason:  req.Reason,
	}

	result, err := h.adjustCreditsUseCase.Execute(c.Request.Context(), cmd)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "credits adjusted", gin.H{
		"user_sid":    result.UserSID,
		"amount":      result.Amount,
		"type":        result.Type,
		"new_balance": result.NewBalance,
	})
}

// VerifyLedger godoc
// @Summary Run a ledger verification pass
// @Description Recomputes every balance from its entries and reports discrepancies; never repairs
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} utils.APIResponse
// @Router /admin/ledger/verify [post]
func (h *AdminHandler) VerifyLedger(c *gin.Context) {
	drift, err := h.verifyLedgerUseCase.Execute(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "ledger verification completed", gin.H{
		"discrepancies": drift,
	})
}

// DisableNode godoc
// @Summary Disable a node
// @Description Blocks new matches and force-closes everything running on the node
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param sid path string true "Node SID"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Router /admin/nodes/{sid}/disable [post]
func (h *AdminHandler) DisableNode(c *gin.Context) {
	h.setNodeDisabled(c, true)
}

// EnableNode godoc
// @Summary Re-enable a node
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param sid path string true "Node SID"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Router /admin/nodes/{sid}/enable [post]
func (h *AdminHandler) EnableNode(c *gin.Context) {
	h.setNodeDisabled(c, false)
}

func (h *AdminHandler) setNodeDisabled(c *gin.Context, disabled bool) {
	cmd := nodeUsecases.SetNodeDisabledCommand{
		NodeSID:  c.Param("sid"),
		Disabled: disabled,
	}

	result, err := h.setNodeDisabledUseCase.Execute(c.Request.Context(), cmd)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	message := "node enabled"
	if result.Disabled {
		message = "node disabled"
	}
	utils.SuccessResponse(c, http.StatusOK, message, gin.H{
		"node_sid":        result.NodeSID,
		"disabled":        result.Disabled,
		"sessions_closed": result.SessionsClosed,
	})
}
