// Package tax implements the pure tax domain: category classification,
// exemption and rate rules, FIFO cost-basis matching, and DARF payment
// derivation. Everything here is side-effect free; persistence lives in the
// services layer.
package tax

import (
	"github.com/shopspring/decimal"

	"carteira/internal/models"
)

// Category is the closed set of IRPF capital-gains categories. Each realized
// sale maps to exactly one category, derived from the asset type and the
// day-trade flag.
type Category string

const (
	CategoryStockSwingTrade Category = "STOCK_SWING_TRADE"
	CategoryStockDayTrade   Category = "STOCK_DAY_TRADE"
	CategoryFiiSwingTrade   Category = "FII_SWING_TRADE"
	CategoryFiiFiagroTrade  Category = "FII_FIAGRO_TRADE"
)

// Rule holds the exemption and rate applied to one category's monthly result.
// A zero MonthlySalesExemption means no exemption.
type Rule struct {
	MonthlySalesExemption decimal.Decimal
	Rate                  decimal.Decimal
}

var (
	rate15 = decimal.New(15, -2) // 0.15
	rate20 = decimal.New(20, -2) // 0.20

	// StockSwingExemption is the monthly total-sales threshold below which
	// stock swing trade profit is exempt (R$ 20,000).
	StockSwingExemption = decimal.New(20000, 0)
)

// rules is the per-category exemption/rate table.
var rules = map[Category]Rule{
	CategoryStockSwingTrade: {MonthlySalesExemption: StockSwingExemption, Rate: rate15},
	CategoryStockDayTrade:   {Rate: rate20},
	CategoryFiiSwingTrade:   {Rate: rate20},
	CategoryFiiFiagroTrade:  {Rate: rate20},
}

// RuleFor returns the exemption/rate rule for a category.
func RuleFor(c Category) Rule {
	return rules[c]
}

// swingCategoryByAssetType maps asset types to their swing-trade category.
// Kept as a table rather than branching so new fund types are a one-line
// change. Treasury bonds are taxed under a separate regime and are not
// covered by this report.
var swingCategoryByAssetType = map[models.AssetType]Category{
	models.AssetTypeStock:   CategoryStockSwingTrade,
	models.AssetTypeFII:     CategoryFiiSwingTrade,
	models.AssetTypeFiagro:  CategoryFiiFiagroTrade,
	models.AssetTypeFiInfra: CategoryFiiFiagroTrade,
}

// CategoryFor derives the tax category for a realized sale. The second
// return value is false for asset types outside the closed set (treasury).
func CategoryFor(assetType models.AssetType, isDayTrade bool) (Category, bool) {
	cat, ok := swingCategoryByAssetType[assetType]
	if !ok {
		return "", false
	}
	if isDayTrade && assetType == models.AssetTypeStock {
		return CategoryStockDayTrade, true
	}
	return cat, true
}

// AllCategories lists the categories in stable report order.
func AllCategories() []Category {
	return []Category{
		CategoryStockSwingTrade,
		CategoryStockDayTrade,
		CategoryFiiSwingTrade,
		CategoryFiiFiagroTrade,
	}
}

// DisplayName returns a human-readable label for the category.
func (c Category) DisplayName() string {
	switch c {
	case CategoryStockSwingTrade:
		return "Ações - Operações Comuns"
	case CategoryStockDayTrade:
		return "Ações - Day Trade"
	case CategoryFiiSwingTrade:
		return "FII - Operações Comuns"
	case CategoryFiiFiagroTrade:
		return "FII/Fiagro/FI-Infra"
	}
	return string(c)
}
