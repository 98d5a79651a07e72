package gateway

import (
	"net/http"
	"time"

	"copytrader/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewServer builds the gin engine with health, CORS and request logging.
// Callers register controllers on the returned engine.
func NewServer(cfg config.HTTPConfig, logger *zap.Logger) (*gin.Engine, *http.Server) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger), CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return r, srv
}
