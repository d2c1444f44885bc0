// Package pricing derives complementary up/down prices from an event's net
// bet position. This is not an order-matching market: it behaves like a
// logistic cost-function market maker with a single global liquidity
// parameter and infinite depth.
package pricing

import (
	"math"

	"github.com/attnmarkets/attnd/internal/domain"
)

// Liquidity controls price sensitivity: the net position (in bet units)
// needed to move the price meaningfully. Larger values mean more volume per
// point of price movement.
const Liquidity = 20.0

// Prices returns (priceUp, priceDown) for the given position. priceUp is a
// sigmoid of net/Liquidity rounded to 4 decimal places; priceDown is its
// exact complement so the two always sum to 1.
func Prices(p domain.Position) (float64, float64) {
	up := round4(sigmoid(p.Net() / Liquidity))
	return up, 1 - up
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
