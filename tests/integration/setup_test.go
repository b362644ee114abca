package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"carteira/internal/handlers"
	"carteira/internal/logger"
	"carteira/internal/middleware"
	"carteira/internal/models"
	"carteira/internal/services"
	"carteira/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.Asset{},
		&models.Transaction{},
		&models.CorporateAction{},
		&models.CorporateActionAdjustment{},
		&models.LossCarryforwardSnapshot{},
		&models.LossCarryforwardEntry{},
		&models.ImportBatch{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	// Services
	assetService := services.NewAssetService(db)
	ledgerService := services.NewLedgerService(db, assetService)
	actionService := services.NewCorporateActionService(db, assetService)
	termService := services.NewTermService(db)
	taxService := services.NewTaxService(db)

	// Handlers
	assetHandler := handlers.NewAssetHandler(assetService)
	transactionHandler := handlers.NewTransactionHandler(ledgerService)
	actionHandler := handlers.NewCorporateActionHandler(actionService)
	termHandler := handlers.NewTermHandler(termService)
	taxHandler := handlers.NewTaxHandler(taxService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	assets := v1.Group("/assets")
	assets.POST("", assetHandler.CreateAsset)
	assets.GET("", assetHandler.ListAssets)
	assets.GET("/:id", assetHandler.GetAssetByID)
	assets.GET("/:id/transactions", transactionHandler.GetAssetTransactions)
	assets.GET("/:id/position", transactionHandler.GetAssetPosition)

	transactions := v1.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.POST("/import", transactionHandler.ImportBatch)

	actions := v1.Group("/corporate-actions")
	actions.POST("", actionHandler.CreateAction)
	actions.GET("/pending", actionHandler.ListUnappliedActions)
	actions.GET("/:id", actionHandler.GetActionByID)
	actions.POST("/:id/apply", actionHandler.ApplyAction)
	actions.POST("/:id/resolve-ratio", actionHandler.ResolveRatio)
	actions.POST("/apply-pending", actionHandler.ApplyAllPending)

	v1.POST("/term/process-liquidations", termHandler.ProcessLiquidations)

	taxes := v1.Group("/tax")
	taxes.GET("/monthly/:year/:month", taxHandler.GetMonthlyTax)
	taxes.GET("/annual/:year", taxHandler.GetAnnualReport)
	taxes.GET("/annual/:year/csv", taxHandler.ExportAnnualReportCSV)

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// assertDecimalField compares a JSON decimal field (encoded as a string)
// numerically, so scale differences like "200" vs "200.00000000" don't fail.
func assertDecimalField(t *testing.T, got interface{}, want, label string) {
	t.Helper()
	s, ok := got.(string)
	if !ok {
		t.Fatalf("%s: expected string-encoded decimal, got %T (%v)", label, got, got)
	}
	gotDec, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("%s: invalid decimal %q: %v", label, s, err)
	}
	wantDec, err := decimal.NewFromString(want)
	if err != nil {
		t.Fatalf("%s: invalid expected decimal %q: %v", label, want, err)
	}
	if !gotDec.Equal(wantDec) {
		t.Errorf("%s: expected %s, got %s", label, want, s)
	}
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// createAsset registers an asset and returns its ID.
func (app *testApp) createAsset(t *testing.T, ticker, assetType string) float64 {
	t.Helper()
	body := fmt.Sprintf(`{"ticker":%q,"asset_type":%q,"name":"Test %s"}`, ticker, assetType, ticker)
	rec := app.request("POST", "/api/v1/assets", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create asset failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	asset := result["asset"].(map[string]interface{})
	return asset["id"].(float64)
}

// createTransaction appends a trade and returns its ID.
func (app *testApp) createTransaction(t *testing.T, assetID float64, txType, date, quantity, price string) float64 {
	t.Helper()
	body := fmt.Sprintf(`{"asset_id":%.0f,"type":%q,"trade_date":%q,"quantity":%q,"price_per_unit":%q}`,
		assetID, txType, date, quantity, price)
	rec := app.request("POST", "/api/v1/transactions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	tx := result["transaction"].(map[string]interface{})
	return tx["id"].(float64)
}
