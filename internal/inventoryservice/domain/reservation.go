// Package domain implements the Inventory service's reservation rule: a
// deliberately simple stand-in for a real stock check (§4.4.2).
package domain

// ReasonInsufficientStock is the rejection reason used whenever the
// reservation rule rejects an order.
const ReasonInsufficientStock = "insufficient_stock"

// DecideReservation applies the stock rule: approve iff
// 0 < sum(quantities) <= 10, otherwise reject with ReasonInsufficientStock.
// Implementers may substitute a real stock query provided the
// approve/reject semantics are preserved.
func DecideReservation(quantities []int) (approved bool, reason string) {
	var total int
	for _, q := range quantities {
		total += q
	}
	if total > 0 && total <= 10 {
		return true, ""
	}
	return false, ReasonInsufficientStock
}
