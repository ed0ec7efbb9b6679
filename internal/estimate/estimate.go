// Package estimate computes estimate totals and formats work-order numbers.
package estimate

import (
	"fmt"
	"math"
	"time"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// Round rounds half away from zero for positive amounts (half up), matching
// the rupiah rounding used on printed estimates.
func Round(x float64) float64 {
	return math.Floor(x + 0.5)
}

// ComputeTotals derives every estimate total from the line items. Discount and
// PPN amounts are rounded at each step.
func ComputeTotals(jasa []models.JasaItem, parts []models.PartItem, discountJasaPct, discountPartPct, ppnPct float64) models.Totals {
	var t models.Totals
	for _, j := range jasa {
		t.SubtotalJasa += j.Price
	}
	for _, p := range parts {
		t.SubtotalPart += p.Qty * p.Price
	}
	t.DiscountJasaAmount = Round(t.SubtotalJasa * discountJasaPct / 100)
	t.DiscountPartAmount = Round(t.SubtotalPart * discountPartPct / 100)
	t.TotalAfterDiscount = (t.SubtotalJasa - t.DiscountJasaAmount) + (t.SubtotalPart - t.DiscountPartAmount)
	t.PpnAmount = Round(t.TotalAfterDiscount * ppnPct / 100)
	t.GrandTotal = t.TotalAfterDiscount + t.PpnAmount
	return t
}

// JasaRevenue is the post-discount labor revenue.
func JasaRevenue(t models.Totals) float64 {
	return t.SubtotalJasa - t.DiscountJasaAmount
}

// PartRevenue is the post-discount parts revenue.
func PartRevenue(t models.Totals) float64 {
	return t.SubtotalPart - t.DiscountPartAmount
}

// CounterKey is the id of the per-period WO counter document.
func CounterKey(t time.Time) string {
	return fmt.Sprintf("wo-%04d-%02d", t.Year(), int(t.Month()))
}

// FormatWONumber renders BW{YY}{MM}{seq:04d}.
func FormatWONumber(t time.Time, seq int64) string {
	return fmt.Sprintf("BW%02d%02d%04d", t.Year()%100, int(t.Month()), seq)
}
