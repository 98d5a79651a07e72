package copier

import (
	"fmt"
	"math"
)

// ScalingFactor returns capital / leadWallet. Both must be positive and finite.
func ScalingFactor(leadWallet, capital float64) (float64, error) {
	if !(leadWallet > 0) || math.IsInf(leadWallet, 0) {
		return 0, fmt.Errorf("%w: lead wallet must be positive, got %v", ErrPrecondition, leadWallet)
	}
	if !(capital > 0) || math.IsInf(capital, 0) {
		return 0, fmt.Errorf("%w: capital must be positive, got %v", ErrPrecondition, capital)
	}
	return capital / leadWallet, nil
}
