package ws

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/framechat-server/internal/config"
	"github.com/vovakirdan/framechat-server/internal/core"
)

// NewServer builds the HTTP server exposing the websocket bridge and a
// health probe.
func NewServer(router *core.Router, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	engine.GET("/ws", gin.WrapH(NewHandler(router, cfg.MaxBodyBytes, logger)))

	return &stdhttp.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
	}
}
