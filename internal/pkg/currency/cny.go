// Package currency formats amounts for reports and notifications.
package currency

import (
	"math"

	"github.com/Rhymond/go-money"
)

// CNY formats an amount in yuan, e.g. ¥1,500.00. Non-finite input renders as "-".
func CNY(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "-"
	}
	return money.NewFromFloat(amount, money.CNY).Display()
}
