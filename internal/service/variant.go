package service

import (
	"math/rand"

	"github.com/unclebandit/leopard-outreach/internal/model"
)

// SelectVariant draws a variant weighted by allocation_percent. It returns nil
// only when there are no variants.
func SelectVariant(variants []model.ABVariant) *model.ABVariant {
	return selectVariant(variants, rand.Float64()*100)
}

// selectVariant returns the first variant whose running allocation total
// reaches r, or the first variant when none does.
func selectVariant(variants []model.ABVariant, r float64) *model.ABVariant {
	if len(variants) == 0 {
		return nil
	}
	sum := 0.0
	for i := range variants {
		sum += variants[i].AllocationPercent
		if sum >= r {
			return &variants[i]
		}
	}
	return &variants[0]
}
