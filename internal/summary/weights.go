package summary

import "github.com/san2804/finguard-go/internal/domain"

// paletteSize matches the number of chart colors on the client; weights wrap
// around when a breakdown has more categories than colors.
const paletteSize = 10

// assignWeights gives each breakdown entry a palette index based on its
// sorted position. The sort is stable and the grouping preserves first-seen
// order, so equal inputs always produce equal weights.
func assignWeights(breakdown []domain.CategoryTotal) {
	for i := range breakdown {
		breakdown[i].Weight = i % paletteSize
	}
}
