// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package devmem

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MemoryStats contains device memory accounting for a Context.
type MemoryStats struct {
	// BudgetBytes is the memory budget; zero means unlimited.
	BudgetBytes Bytes

	// UsedBytes is the memory held by live device surfaces.
	UsedBytes Bytes

	// PeakBytes is the highest UsedBytes seen.
	PeakBytes Bytes

	// Surfaces is the number of live device surfaces.
	Surfaces int

	// Allocations is the total number of successful allocations.
	Allocations uint64

	// Rejections is the number of allocations refused by the budget.
	Rejections uint64

	// Utilization is the fraction of the budget in use (0.0 to 1.0).
	// It is zero when the budget is unlimited.
	Utilization float64
}

// String returns a human-readable string of memory stats.
// Byte counts are printed with digit grouping.
func (s MemoryStats) String() string {
	p := message.NewPrinter(language.English)
	if s.BudgetBytes == 0 {
		return p.Sprintf("Memory[%d bytes used, peak %d, %d surfaces, unlimited]",
			int64(s.UsedBytes), int64(s.PeakBytes), s.Surfaces)
	}
	return p.Sprintf("Memory[%.1f%% used, %d/%d bytes, peak %d, %d surfaces, %d rejected]",
		s.Utilization*100, int64(s.UsedBytes), int64(s.BudgetBytes), int64(s.PeakBytes),
		s.Surfaces, s.Rejections)
}
