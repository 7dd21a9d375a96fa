package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-revocation/internal/infra/config"
	"github.com/arklim/social-platform-revocation/internal/transport/http/handlers"
	"github.com/arklim/social-platform-revocation/internal/transport/http/middleware"
	"github.com/arklim/social-platform-revocation/internal/usecase"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config     *config.AppConfig
	Logger     *zap.Logger
	Revocation *usecase.RevocationService
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))

	health := handlers.NewHealthHandler()
	r.GET("/healthz", health.Status)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	handlers.NewRevocationHandler(deps.Revocation).RegisterRoutes(v1)

	return r
}
