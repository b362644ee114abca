// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// tickerRegex matches B3 ticker symbols: four letters, a series digit or
// two, and optional suffixes such as the term-contract T or fractional F
// (PETR4, BOVA11, ANIM3T, ITSA4F).
var tickerRegex = regexp.MustCompile(`^[A-Z]{4}[0-9]{1,2}[A-Z]{0,2}$`)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("ticker", validateTicker)
		_ = v.RegisterValidation("asset_type", validateAssetType)
		_ = v.RegisterValidation("transaction_type", validateTransactionType)
		_ = v.RegisterValidation("action_type", validateActionType)
	}
}

func validateTicker(fl validator.FieldLevel) bool {
	return tickerRegex.MatchString(fl.Field().String())
}

func validateAssetType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "STOCK", "FII", "FIAGRO", "FI_INFRA", "TREASURY":
		return true
	}
	return false
}

func validateTransactionType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "BUY", "SELL":
		return true
	}
	return false
}

func validateActionType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "SPLIT", "REVERSE_SPLIT", "BONUS", "CAPITAL_RETURN":
		return true
	}
	return false
}
