package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/worldvpn/broker/internal/application/node/usecases"
	"github.com/worldvpn/broker/internal/shared/constants"
	"github.com/worldvpn/broker/internal/shared/logger"
	"github.com/worldvpn/broker/internal/shared/utils"
)

type NodeHandler struct {
	registerNodeUseCase *usecases.RegisterNodeUseCase
	listMyNodesUseCase  *usecases.ListMyNodesUseCase
	discoverUseCase     *usecases.DiscoverNodesUseCase
	logger              logger.Interface
}

func NewNodeHandler(
	registerNodeUC *usecases.RegisterNodeUseCase,
	listMyNodesUC *usecases.ListMyNodesUseCase,
	discoverUC *usecases.DiscoverNodesUseCase,
	logger logger.Interface,
) *NodeHandler {
	return &NodeHandler{
		registerNodeUseCase: registerNodeUC,
		listMyNodesUseCase:  listMyNodesUC,
		discoverUseCase:     discoverUC,
		logger:              logger,
	}
}

type RegisterNodeRequest struct {
	Name             string   `json:"name" binding:"required,min=3,max=64"`
	PublicIdentity   string   `json:"public_identity" binding:"required"`
	CountryCode      string   `json:"country_code" binding:"required,countrycode"`
	City             string   `json:"city" binding:"max=64"`
	BandwidthMbps    uint     `json:"bandwidth_mbps" binding:"required,min=1"`
	MaxConnections   uint     `json:"max_connections" binding:"required,min=1"`
	Protocols        []string `json:"protocols" binding:"required,min=1"`
	AllowedCountries []string `json:"allowed_countries"`
	BlockedCountries []string `json:"blocked_countries"`
	AllowStreaming   bool     `json:"allow_streaming"`
	AllowTorrents    bool     `json:"allow_torrents"`
	DailyByteCap     uint64   `json:"daily_byte_cap"`
}

type DiscoverNodesRequest struct {
	ClientCountry string  `form:"client_country" binding:"required,countrycode"`
	Country       *string `form:"country" binding:"omitempty,countrycode"`
	Protocol      *string `form:"protocol"`
	Group         *string `form:"group"`
}

// Register godoc
// @Summary Register a community node
// @Description Adds a node to the directory and returns its API token exactly once
// @Tags nodes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RegisterNodeRequest true "Node payload"
// @Success 201 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Router /nodes [post]
func (h *NodeHandler) Register(c *gin.Context) {
	var req RegisterNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	cmd := usecases.RegisterNodeCommand{
		OwnerSID:         c.GetString(constants.ContextKeyUserSID),
		Name:             req.Name,
		PublicIdentity:   req.PublicIdentity,
		CountryCode:      req.CountryCode,
		City:             req.City,
		BandwidthMbps:    req.BandwidthMbps,
		MaxConnections:   req.MaxConnections,
		Protocols:        req.Protocols,
		AllowedCountries: req.AllowedCountries,
		BlockedCountries: req.BlockedCountries,
		AllowStreaming:   req.AllowStreaming,
		AllowTorrents:    req.AllowTorrents,
		DailyByteCap:     req.DailyByteCap,
	}

	result, err := h.registerNodeUseCase.Execute(c.Request.Context(), cmd)
	if err != nil {
		h.logger.Warnw("node registration failed", "name", req.Name, "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "node registered, store the API token now: it is not shown again", gin.H{
		"node_sid":  result.NodeSID,
		"name":      result.Name,
		"country":   result.Country,
		"api_token": result.APIToken,
	})
}

// ListMine godoc
// @Summary List the caller's nodes
// @Description Returns the operator view of every node the caller owns
// @Tags nodes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} utils.APIResponse
// @Router /nodes/mine [get]
func (h *NodeHandler) ListMine(c *gin.Context) {
	views, err := h.listMyNodesUseCase.Execute(c.Request.Context(), usecases.ListMyNodesQuery{
		OwnerSID: c.GetString(constants.ContextKeyUserSID),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "nodes retrieved", gin.H{
		"nodes": views,
		"total": len(views),
	})
}

// Discover godoc
// @Summary Browse eligible nodes
// @Description Lists nodes the matcher would consider for the given client country
// @Tags nodes
// @Produce json
// @Security BearerAuth
// @Param client_country query string true "ISO 3166-1 alpha-2 client country"
// @Param country query string false "Filter by node country"
// @Param protocol query string false "Filter by protocol"
// @Param group query string false "Filter by node group"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Router /nodes [get]
func (h *NodeHandler) Discover(c *gin.Context) {
	var req DiscoverNodesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	views, err := h.discoverUseCase.Execute(c.Request.Context(), usecases.DiscoverNodesQuery{
		ClientCountry: req.ClientCountry,
		NodeCountry:   req.Country,
		Protocol:      req.Protocol,
		Group:         req.Group,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "nodes retrieved", gin.H{
		"nodes": views,
		"total": len(views),
	})
}
