package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"carteira/internal/config"
	"carteira/internal/database"
	"carteira/internal/handlers"
	"carteira/internal/logger"
	"carteira/internal/middleware"
	"carteira/internal/services"
	"carteira/internal/validator"
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Initialize services
	db := dbManager.DB()
	assetService := services.NewAssetService(db)
	ledgerService := services.NewLedgerService(db, assetService)
	actionService := services.NewCorporateActionService(db, assetService)
	termService := services.NewTermService(db)
	taxService := services.NewTaxService(db)

	// Initialize handlers
	assetHandler := handlers.NewAssetHandler(assetService)
	transactionHandler := handlers.NewTransactionHandler(ledgerService)
	actionHandler := handlers.NewCorporateActionHandler(actionService)
	termHandler := handlers.NewTermHandler(termService)
	taxHandler := handlers.NewTaxHandler(taxService)

	// Register custom binding validators
	validator.Register()

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group; the token check is a pass-through unless API_TOKEN is set
	v1 := router.Group("/api/v1")
	v1.Use(middleware.TokenAuth())

	// Asset routes
	assets := v1.Group("/assets")
	assets.POST("", assetHandler.CreateAsset)
	assets.GET("", assetHandler.ListAssets)
	assets.GET("/:id", assetHandler.GetAssetByID)
	assets.GET("/:id/transactions", transactionHandler.GetAssetTransactions)
	assets.GET("/:id/position", transactionHandler.GetAssetPosition)

	// Transaction routes
	transactions := v1.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.POST("/import", transactionHandler.ImportBatch)

	// Corporate action routes
	actions := v1.Group("/corporate-actions")
	actions.POST("", actionHandler.CreateAction)
	actions.GET("/pending", actionHandler.ListUnappliedActions)
	actions.GET("/:id", actionHandler.GetActionByID)
	actions.POST("/:id/apply", actionHandler.ApplyAction)
	actions.POST("/:id/resolve-ratio", actionHandler.ResolveRatio)
	actions.POST("/apply-pending", actionHandler.ApplyAllPending)

	// Term contract routes
	v1.POST("/term/process-liquidations", termHandler.ProcessLiquidations)

	// Tax routes
	taxes := v1.Group("/tax")
	taxes.GET("/monthly/:year/:month", taxHandler.GetMonthlyTax)
	taxes.GET("/annual/:year", taxHandler.GetAnnualReport)
	taxes.GET("/annual/:year/csv", taxHandler.ExportAnnualReportCSV)

	log.Infof("Starting carteira server on port %s", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
