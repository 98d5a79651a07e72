package gateway

import (
	"context"
	"errors"
	"net/http"

	"copytrader/internal/copier"
	"copytrader/internal/memorystore"

	"github.com/gin-gonic/gin"
)

// CopyService is the part of copier.Manager the gateway calls.
type CopyService interface {
	Start(ctx context.Context, req copier.StartRequest) (string, error)
	Stop(copierID string) bool
	IsActiveKey(apiKey string) bool
	OrderLog(copierID string) ([]memorystore.OrderRecord, float64)
	Positions(ctx context.Context, creds copier.Credentials) []copier.PositionView
	LeadsWithAUM(ctx context.Context) []copier.LeadAUM
	PriceMap() map[string]float64
}

type CopyController struct {
	service CopyService
}

func NewCopyController(service CopyService) *CopyController {
	return &CopyController{service: service}
}

func (c *CopyController) RegisterCopyRoutes(rg *gin.RouterGroup) {
	rg.POST("/start-copy", c.handleStartCopy)
	rg.POST("/stop-copy", c.handleStopCopy)
	rg.POST("/order-log", c.handleOrderLog)
	rg.POST("/copier-positions-full", c.handlePositions)
	rg.POST("/is-active", c.handleIsActive)
	rg.GET("/leads", c.handleLeads)
	rg.GET("/ltp", c.handlePriceMap)
}

type startCopyRequest struct {
	LeadID        string  `json:"lead_id"`
	CopierKey     string  `json:"copier_key"`
	CopierSecret  string  `json:"copier_secret"`
	CopierCapital float64 `json:"copier_capital"`
	Reverse       bool    `json:"reverse"`
}

type copierKeyRequest struct {
	CopierKey    string `json:"copier_key"`
	CopierSecret string `json:"copier_secret"`
}

func (c *CopyController) handleStartCopy(ctx *gin.Context) {
	var req startCopyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"status": "error", "reason": reasonInvalidRequest})
		return
	}

	id, err := c.service.Start(ctx.Request.Context(), copier.StartRequest{
		LeadID:      req.LeadID,
		Credentials: copier.Credentials{Key: req.CopierKey, Secret: req.CopierSecret},
		Capital:     req.CopierCapital,
		Reverse:     req.Reverse,
	})
	if err != nil {
		status, reason := startFailure(err)
		ctx.JSON(status, gin.H{"status": "error", "reason": reason})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok", "copier_id": id})
}

func (c *CopyController) handleStopCopy(ctx *gin.Context) {
	var req copierKeyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.CopierKey == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"status": "error", "reason": reasonInvalidRequest})
		return
	}
	c.service.Stop(copier.CopierID(req.CopierKey))
	ctx.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (c *CopyController) handleOrderLog(ctx *gin.Context) {
	var req copierKeyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.CopierKey == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"status": "error", "reason": reasonInvalidRequest})
		return
	}
	orders, pnl := c.service.OrderLog(copier.CopierID(req.CopierKey))
	ctx.JSON(http.StatusOK, gin.H{"orders": orders, "pnl": pnl})
}

// handlePositions answers with an empty list for any failure, including a bad body.
func (c *CopyController) handlePositions(ctx *gin.Context) {
	var req copierKeyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.CopierKey == "" || req.CopierSecret == "" {
		ctx.JSON(http.StatusOK, []copier.PositionView{})
		return
	}
	views := c.service.Positions(ctx.Request.Context(), copier.Credentials{Key: req.CopierKey, Secret: req.CopierSecret})
	ctx.JSON(http.StatusOK, views)
}

func (c *CopyController) handleIsActive(ctx *gin.Context) {
	var req copierKeyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"status": "error", "reason": reasonInvalidRequest})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"active": req.CopierKey != "" && c.service.IsActiveKey(req.CopierKey)})
}

func (c *CopyController) handleLeads(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.service.LeadsWithAUM(ctx.Request.Context()))
}

func (c *CopyController) handlePriceMap(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.service.PriceMap())
}

// Reason codes returned with a failed start. Raw errors never reach the client.
const (
	reasonInvalidRequest = "invalid_request"
	reasonUnknownLead    = "unknown_lead"
	reasonAlreadyActive  = "already_active"
	reasonLeadWallet     = "lead_wallet_unavailable"
	reasonShuttingDown   = "shutting_down"
	reasonInternal       = "internal_error"
)

func startFailure(err error) (int, string) {
	switch {
	case errors.Is(err, copier.ErrUnknownLead):
		return http.StatusNotFound, reasonUnknownLead
	case errors.Is(err, copier.ErrSessionExists):
		return http.StatusConflict, reasonAlreadyActive
	case errors.Is(err, copier.ErrLeadWallet):
		return http.StatusUnprocessableEntity, reasonLeadWallet
	case errors.Is(err, copier.ErrInvalidStart):
		return http.StatusBadRequest, reasonInvalidRequest
	case errors.Is(err, copier.ErrManagerShutdown):
		return http.StatusServiceUnavailable, reasonShuttingDown
	case errors.Is(err, copier.ErrConfiguration):
		return http.StatusNotFound, reasonUnknownLead
	case errors.Is(err, copier.ErrPrecondition):
		return http.StatusUnprocessableEntity, reasonLeadWallet
	default:
		return http.StatusInternalServerError, reasonInternal
	}
}
