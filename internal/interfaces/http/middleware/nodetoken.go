package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/worldvpn/broker/internal/application/node/usecases"
	"github.com/worldvpn/broker/internal/shared/constants"
	"github.com/worldvpn/broker/internal/shared/logger"
	"github.com/worldvpn/broker/internal/shared/utils"
)

type ValidateNodeTokenExecutor interface {
	Execute(ctx context.Context, cmd usecases.ValidateNodeTokenCommand) (*usecases.ValidateNodeTokenResult, error)
}

// NodeTokenMiddleware authenticates relay agents by their node API token.
// Agents are not users: they never carry a JWT, only the node_ token minted
// at registration.
type NodeTokenMiddleware struct {
	validateTokenUC ValidateNodeTokenExecutor
	logger          logger.Interface
}

func NewNodeTokenMiddleware(
	validateTokenUC ValidateNodeTokenExecutor,
	logger logger.Interface,
) *NodeTokenMiddleware {
	return &NodeTokenMiddleware{
		validateTokenUC: validateTokenUC,
		logger:          logger,
	}
}

func (m *NodeTokenMiddleware) RequireNodeToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var token string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}

		if token == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "missing node token")
			c.Abort()
			return
		}

		cmd := usecases.ValidateNodeTokenCommand{
			PlainToken: token,
		}

		result, err := m.validateTokenUC.Execute(c.Request.Context(), cmd)
		if err != nil {
			m.logger.Warnw("node token validation failed", "error", err, "ip", c.ClientIP())
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid node token")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyNodeID, result.NodeID)
		c.Set(constants.ContextKeyNodeSID, result.NodeSID)
		c.Next()
	}
}
