package quantity

import "errors"

// Status describes how much of an item's requested quantity has been bought.
type Status string

const (
	StatusPending            Status = "pending"
	StatusPartiallyPurchased Status = "partially_purchased"
	StatusPurchased          Status = "purchased"

	// Terminal overrides set outside the quantity machine. DeriveStatus
	// never returns these; callers that carry them must skip the machine.
	StatusNotAvailable Status = "not_available"
	StatusCancelled    Status = "cancelled"
)

// ErrInvalidAmount is returned for purchase amounts that are zero or negative.
var ErrInvalidAmount = errors.New("purchase amount must be positive")

// Terminal reports whether a status is outside the purchase lifecycle.
// Items in a terminal status reject quantity mutations.
func Terminal(s Status) bool {
	return s == StatusNotAvailable || s == StatusCancelled
}

// DeriveStatus computes the status for a purchased amount against the
// requested total. The purchased value is clamped to [0, total] first, so an
// over-purchased input still derives to StatusPurchased.
func DeriveStatus(total, purchased float64) Status {
	purchased = Clamp(total, purchased)
	switch {
	case purchased <= 0:
		return StatusPending
	case purchased < total:
		return StatusPartiallyPurchased
	default:
		return StatusPurchased
	}
}

// Clamp bounds a purchased value to [0, total].
func Clamp(total, purchased float64) float64 {
	if purchased < 0 {
		return 0
	}
	if purchased > total {
		return total
	}
	return purchased
}

// ApplyPurchase adds amount to the purchased quantity, capping at total.
// Overshooting is not an error: re-purchasing an already-purchased item is a
// no-op beyond the cap. A non-positive amount is rejected before any change.
func ApplyPurchase(total, purchased, amount float64) (float64, Status, error) {
	if amount <= 0 {
		return purchased, DeriveStatus(total, purchased), ErrInvalidAmount
	}
	next := Clamp(total, purchased+amount)
	return next, DeriveStatus(total, next), nil
}

// ApplyUnpurchase subtracts amount from the purchased quantity, flooring at
// zero. An amount of zero or less means "all of it": the item returns to
// fully unpurchased in one step.
func ApplyUnpurchase(total, purchased, amount float64) (float64, Status) {
	if amount <= 0 {
		amount = purchased
	}
	next := Clamp(total, purchased-amount)
	return next, DeriveStatus(total, next)
}

// DefaultPurchaseAmount is the amount consumed when the user does not pick
// one explicitly. A partially purchased item defaults to the remainder (the
// user is finishing it, not restarting); anything else defaults to the full
// requested quantity.
func DefaultPurchaseAmount(total, purchased float64) float64 {
	if purchased > 0 && purchased < total {
		return total - purchased
	}
	return total
}
