package integration

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestTaxFlow_AnnualReport(t *testing.T) {
	app := setupApp(t)

	stockID := app.createAsset(t, "PETR4", "STOCK")
	fiiID := app.createAsset(t, "HGLG11", "FII")

	// Stock: 30,000 in February sales at a 5,000 profit (above the exemption).
	app.createTransaction(t, stockID, "BUY", "2024-01-05", "1000", "25")
	app.createTransaction(t, stockID, "SELL", "2024-02-10", "1000", "30")
	// FII: 100 profit in May, taxed at 20% with no exemption.
	app.createTransaction(t, fiiID, "BUY", "2024-04-05", "100", "10")
	app.createTransaction(t, fiiID, "SELL", "2024-05-10", "100", "11")

	rec := app.request("GET", "/api/v1/tax/annual/2024", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("annual report failed: %d %s", rec.Code, rec.Body.String())
	}
	report := parseJSON(t, rec)["report"].(map[string]interface{})

	assertDecimalField(t, report["annual_total_sales"], "31100", "annual sales")
	assertDecimalField(t, report["annual_total_profit"], "5100", "annual profit")
	assertDecimalField(t, report["annual_total_tax"], "770", "annual tax")

	months := report["monthly_summaries"].([]interface{})
	if len(months) != 2 {
		t.Fatalf("expected 2 monthly summaries, got %d", len(months))
	}
	feb := months[0].(map[string]interface{})
	if feb["month_name"] != "Fevereiro" {
		t.Errorf("expected Fevereiro, got %v", feb["month_name"])
	}
	assertDecimalField(t, feb["tax_due"], "750", "february tax")
}

func TestTaxFlow_MonthlyDarf(t *testing.T) {
	app := setupApp(t)

	stockID := app.createAsset(t, "PETR4", "STOCK")
	app.createTransaction(t, stockID, "BUY", "2024-01-05", "1000", "25")
	app.createTransaction(t, stockID, "SELL", "2024-02-10", "1000", "30")

	rec := app.request("GET", "/api/v1/tax/monthly/2024/2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("monthly tax failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)

	darfs := result["darfs"].([]interface{})
	if len(darfs) != 1 {
		t.Fatalf("expected 1 DARF, got %d", len(darfs))
	}
	darf := darfs[0].(map[string]interface{})
	if darf["code"] != "6015" {
		t.Errorf("expected DARF code 6015, got %v", darf["code"])
	}
	if darf["tax_due"] != "750.00" {
		t.Errorf("expected tax due 750.00, got %v", darf["tax_due"])
	}
	if darf["due_date"] != "2024-03-31" {
		t.Errorf("expected due date 2024-03-31, got %v", darf["due_date"])
	}
	if !strings.HasPrefix(darf["tax_display"].(string), "R$") {
		t.Errorf("expected BRL-formatted display amount, got %v", darf["tax_display"])
	}
}

func TestTaxFlow_CSVExport(t *testing.T) {
	app := setupApp(t)

	stockID := app.createAsset(t, "PETR4", "STOCK")
	app.createTransaction(t, stockID, "BUY", "2024-01-05", "1000", "25")
	app.createTransaction(t, stockID, "SELL", "2024-02-10", "1000", "30")

	rec := app.request("GET", "/api/v1/tax/annual/2024/csv", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("csv export failed: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected text/csv content type, got %s", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Fevereiro,30000.00,5000.00,750.00") {
		t.Errorf("expected February row, got:\n%s", body)
	}
}

func TestTermFlow_ProcessLiquidations(t *testing.T) {
	app := setupApp(t)

	underlyingID := app.createAsset(t, "ANIM3", "STOCK")
	termID := app.createAsset(t, "ANIM3T", "STOCK")
	app.createTransaction(t, termID, "BUY", "2024-01-10", "100", "10")

	// The importer writes the liquidation as a buy on the underlying with a
	// marker note.
	rec := app.request("POST", "/api/v1/transactions", fmt.Sprintf(
		`{"asset_id":%.0f,"type":"BUY","trade_date":"2024-02-10","quantity":"100","price_per_unit":"10","notes":"Term contract liquidation of ANIM3T"}`,
		underlyingID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create liquidation failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.request("POST", "/api/v1/term/process-liquidations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("process liquidations failed: %d %s", rec.Code, rec.Body.String())
	}
	if got := parseJSON(t, rec)["processed"].(float64); got != 1 {
		t.Errorf("expected 1 liquidation processed, got %.0f", got)
	}

	// Second run is a no-op.
	rec = app.request("POST", "/api/v1/term/process-liquidations", "")
	if got := parseJSON(t, rec)["processed"].(float64); got != 0 {
		t.Errorf("expected repeat run to process 0, got %.0f", got)
	}
}
