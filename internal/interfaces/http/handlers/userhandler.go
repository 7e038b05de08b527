package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/worldvpn/broker/internal/application/user/usecases"
	"github.com/worldvpn/broker/internal/shared/constants"
	"github.com/worldvpn/broker/internal/shared/logger"
	"github.com/worldvpn/broker/internal/shared/utils"
)

type UserHandler struct {
	getProfileUseCase *usecases.GetProfileUseCase
	logger            logger.Interface
}

func NewUserHandler(getProfileUC *usecases.GetProfileUseCase, logger logger.Interface) *UserHandler {
	return &UserHandler{
		getProfileUseCase: getProfileUC,
		logger:            logger,
	}
}

// GetProfile godoc
// @Summary Get the caller's profile
// @Description Returns the authenticated account with its ledger-derived balance
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} utils.APIResponse
// @Failure 401 {object} utils.APIResponse
// @Router /users/me [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	userSID := c.GetString(constants.ContextKeyUserSID)

	result, err := h.getProfileUseCase.Execute(c.Request.Context(), usecases.GetProfileQuery{
		UserSID: userSID,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "profile retrieved", gin.H{
		"user_sid":   result.UserSID,
		"username":   result.Username,
		"role":       result.Role,
		"credits":    result.Credits,
		"risk_score": result.RiskScore,
		"created_at": result.CreatedAt,
	})
}
