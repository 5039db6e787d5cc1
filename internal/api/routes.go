package api

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/codyseavey/tcg-scan/internal/api/handlers"
	"github.com/codyseavey/tcg-scan/internal/services"
)

// Dependencies are the services the router exposes. Runs may be nil.
type Dependencies struct {
	Identifier     *services.CardIdentifier
	Catalog        *services.CatalogStore
	Runs           *services.OCRRunRecorder
	Sync           *services.CatalogSync
	AllowedOrigins []string
	Logger         *zap.Logger
}

// SetupRouter builds the gin engine. ctx bounds background work started by
// handlers, such as catalog syncs.
func SetupRouter(ctx context.Context, deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(deps.Logger))
	router.Use(RequestMetrics())

	config := cors.DefaultConfig()
	if len(deps.AllowedOrigins) > 0 {
		config.AllowOrigins = deps.AllowedOrigins
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	config.AllowCredentials = false
	router.Use(cors.New(config))

	cardHandler := handlers.NewCardHandler(deps.Identifier, deps.Catalog, deps.Runs, deps.Logger)
	catalogHandler := handlers.NewCatalogHandler(ctx, deps.Sync, deps.Logger)

	api := router.Group("/api")
	{
		cards := api.Group("/cards")
		{
			cards.POST("/identify", cardHandler.IdentifyCard)
			cards.POST("/identify-image", cardHandler.IdentifyCardFromImage)
			cards.GET("/ocr-status", cardHandler.GetOCRStatus)
			cards.GET("/:id", cardHandler.GetCard)
		}

		api.GET("/ocr/runs", cardHandler.ListRuns)

		catalog := api.Group("/catalog")
		{
			catalog.POST("/sync", catalogHandler.TriggerSync)
			catalog.GET("/status", catalogHandler.GetStatus)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
