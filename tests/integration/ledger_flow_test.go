package integration

import (
	"fmt"
	"net/http"
	"testing"
)

func TestLedgerFlow_CorporateActionAdjustment(t *testing.T) {
	app := setupApp(t)

	assetID := app.createAsset(t, "PETR4", "STOCK")
	app.createTransaction(t, assetID, "BUY", "2024-01-10", "100", "10")

	// Record a 1:2 split after the purchase.
	rec := app.request("POST", "/api/v1/corporate-actions",
		fmt.Sprintf(`{"asset_id":%.0f,"action_type":"SPLIT","event_date":"2024-06-01","ratio_from":1,"ratio_to":2}`, assetID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create action failed: %d %s", rec.Code, rec.Body.String())
	}
	actionID := parseJSON(t, rec)["action"].(map[string]interface{})["id"].(float64)

	// The action shows up as pending.
	rec = app.request("GET", "/api/v1/corporate-actions/pending", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("pending list failed: %d %s", rec.Code, rec.Body.String())
	}
	pending := parseJSON(t, rec)["actions"].([]interface{})
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending action, got %d", len(pending))
	}

	// Apply it: one transaction adjusted.
	rec = app.request("POST", fmt.Sprintf("/api/v1/corporate-actions/%.0f/apply", actionID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("apply failed: %d %s", rec.Code, rec.Body.String())
	}
	if got := parseJSON(t, rec)["adjusted_transactions"].(float64); got != 1 {
		t.Errorf("expected 1 adjusted transaction, got %.0f", got)
	}

	// Applying again is a no-op.
	rec = app.request("POST", fmt.Sprintf("/api/v1/corporate-actions/%.0f/apply", actionID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reapply failed: %d %s", rec.Code, rec.Body.String())
	}
	if got := parseJSON(t, rec)["adjusted_transactions"].(float64); got != 0 {
		t.Errorf("expected repeat application to adjust 0, got %.0f", got)
	}

	// The rewritten lot reflects the split.
	rec = app.request("GET", fmt.Sprintf("/api/v1/assets/%.0f/transactions", assetID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list transactions failed: %d %s", rec.Code, rec.Body.String())
	}
	data := parseJSON(t, rec)["data"].([]interface{})
	tx := data[0].(map[string]interface{})
	assertDecimalField(t, tx["quantity"], "200", "quantity after split")
	assertDecimalField(t, tx["price_per_unit"], "5", "price after split")
	assertDecimalField(t, tx["total_cost"], "1000", "total cost after split")

	// Position reflects the adjusted quantity.
	rec = app.request("GET", fmt.Sprintf("/api/v1/assets/%.0f/position?before=2024-12-31", assetID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("position failed: %d %s", rec.Code, rec.Body.String())
	}
	assertDecimalField(t, parseJSON(t, rec)["quantity"], "200", "position")
}

func TestLedgerFlow_ImportBatch(t *testing.T) {
	app := setupApp(t)
	app.createAsset(t, "VALE3", "STOCK")

	body := `{
		"source": "b3-statement",
		"transactions": [
			{"ticker":"VALE3","type":"BUY","trade_date":"2024-01-10","quantity":"100","price_per_unit":"60"},
			{"ticker":"VALE3","type":"SELL","trade_date":"2024-02-10","quantity":"40","price_per_unit":"65"}
		],
		"actions": [
			{"ticker":"VALE3","action_type":"BONUS","event_date":"2024-06-01","ratio_from":10,"ratio_to":11}
		]
	}`
	rec := app.request("POST", "/api/v1/transactions/import", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("import failed: %d %s", rec.Code, rec.Body.String())
	}
	batch := parseJSON(t, rec)["batch"].(map[string]interface{})
	if batch["transaction_count"].(float64) != 2 {
		t.Errorf("expected 2 transactions imported, got %v", batch["transaction_count"])
	}
	if batch["action_count"].(float64) != 1 {
		t.Errorf("expected 1 action imported, got %v", batch["action_count"])
	}

	// Unknown ticker aborts the whole batch.
	rec = app.request("POST", "/api/v1/transactions/import", `{
		"source": "b3-statement",
		"transactions": [
			{"ticker":"XXXX9","type":"BUY","trade_date":"2024-01-10","quantity":"1","price_per_unit":"1"}
		]
	}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown ticker, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLedgerFlow_ValidationErrors(t *testing.T) {
	app := setupApp(t)
	assetID := app.createAsset(t, "ITSA4", "STOCK")

	// Malformed ticker is rejected by binding.
	rec := app.request("POST", "/api/v1/assets", `{"ticker":"NOT A TICKER","asset_type":"STOCK"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad ticker, got %d", rec.Code)
	}

	// Unknown transaction type is rejected.
	rec = app.request("POST", "/api/v1/transactions",
		fmt.Sprintf(`{"asset_id":%.0f,"type":"SHORT","trade_date":"2024-01-10","quantity":"1","price_per_unit":"1"}`, assetID))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad type, got %d", rec.Code)
	}

	// Negative quantity is rejected by the service.
	rec = app.request("POST", "/api/v1/transactions",
		fmt.Sprintf(`{"asset_id":%.0f,"type":"BUY","trade_date":"2024-01-10","quantity":"-5","price_per_unit":"1"}`, assetID))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative quantity, got %d", rec.Code)
	}
}
