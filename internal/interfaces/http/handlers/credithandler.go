package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/worldvpn/broker/internal/application/ledger/usecases"
	"github.com/worldvpn/broker/internal/shared/constants"
	"github.com/worldvpn/broker/internal/shared/logger"
	"github.com/worldvpn/broker/internal/shared/utils"
)

type CreditHandler struct {
	getBalanceUseCase  *usecases.GetBalanceUseCase
	getHistoryUseCase  *usecases.GetHistoryUseCase
	syncCreditsUseCase *usecases.SyncCreditsUseCase
	logger             logger.Interface
}

func NewCreditHandler(
	getBalanceUC *usecases.GetBalanceUseCase,
	getHistoryUC *usecases.GetHistoryUseCase,
	syncCreditsUC *usecases.SyncCreditsUseCase,
	logger logger.Interface,
) *CreditHandler {
	return &CreditHandler{
		getBalanceUseCase:  getBalanceUC,
		getHistoryUseCase:  getHistoryUC,
		syncCreditsUseCase: syncCreditsUC,
		logger:             logger,
	}
}

type SyncCreditsRequest struct {
	SharedBytes   int64  `json:"shared_bytes" binding:"min=0"`
	ConsumedBytes int64  `json:"consumed_bytes" binding:"min=0"`
	Note          string `json:"note" binding:"omitempty,max=128"`
}

// GetBalance godoc
// @Summary Get the caller's credit balance
// @Description The balance is computed from the ledger, never from a cached counter
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Success 200 {object} utils.APIResponse
// @Router /credits/balance [get]
func (h *CreditHandler) GetBalance(c *gin.Context) {
	result, err := h.getBalanceUseCase.Execute(c.Request.Context(), usecases.GetBalanceQuery{
		UserSID: c.GetString(constants.ContextKeyUserSID),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "balance retrieved", gin.H{
		"user_sid": result.UserSID,
		"balance":  result.Balance,
	})
}

// GetHistory godoc
// @Summary Get the caller's transaction history
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries to return"
// @Success 200 {object} utils.APIResponse
// @Router /credits/history [get]
func (h *CreditHandler) GetHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	result, err := h.getHistoryUseCase.Execute(c.Request.Context(), usecases.GetHistoryQuery{
		UserSID: c.GetString(constants.ContextKeyUserSID),
		Limit:   limit,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "history retrieved", gin.H{
		"balance":      result.Balance,
		"transactions": result.Transactions,
		"total":        len(result.Transactions),
	})
}

// Sync godoc
// @Summary Settle direct peer-to-peer traffic
// @Description Posts the net credit change for bytes shared and consumed outside brokered sessions
// @Tags credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SyncCreditsRequest true "Traffic deltas"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 402 {object} utils.APIResponse
// @Router /credits/sync [post]
func (h *CreditHandler) Sync(c *gin.Context) {
	var req SyncCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.syncCreditsUseCase.Execute(c.Request.Context(), usecases.SyncCreditsCommand{
		UserSID:       c.GetString(constants.ContextKeyUserSID),
		SharedBytes:   req.SharedBytes,
		ConsumedBytes: req.ConsumedBytes,
		Note:          req.Note,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "traffic synced", gin.H{
		"credits_change": result.CreditsChange,
		"type":           result.Type,
		"balance":        result.NewBalance,
	})
}
