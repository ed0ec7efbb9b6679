package estimate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

func TestComputeTotals(t *testing.T) {
	jasa := []models.JasaItem{{Name: "Cat pintu depan", Price: 100000}}
	parts := []models.PartItem{{Name: "Handle", Number: "KD45-58-410", Qty: 2, Price: 50000}}

	got := ComputeTotals(jasa, parts, 10, 0, 11)

	assert.Equal(t, 100000.0, got.SubtotalJasa)
	assert.Equal(t, 10000.0, got.DiscountJasaAmount)
	assert.Equal(t, 100000.0, got.SubtotalPart)
	assert.Equal(t, 0.0, got.DiscountPartAmount)
	assert.Equal(t, 190000.0, got.TotalAfterDiscount)
	assert.Equal(t, 20900.0, got.PpnAmount)
	assert.Equal(t, 210900.0, got.GrandTotal)
	assert.Equal(t, 90000.0, JasaRevenue(got))
	assert.Equal(t, 100000.0, PartRevenue(got))
}

func TestComputeTotals_RoundsEachStep(t *testing.T) {
	jasa := []models.JasaItem{{Name: "Poles", Price: 33333}}
	parts := []models.PartItem{{Name: "Klip", Qty: 3, Price: 1111}}

	got := ComputeTotals(jasa, parts, 7.5, 7.5, 11)

	// 33333 * 0.075 = 2499.975 -> 2500; 3333 * 0.075 = 249.975 -> 250
	assert.Equal(t, 2500.0, got.DiscountJasaAmount)
	assert.Equal(t, 250.0, got.DiscountPartAmount)
	assert.Equal(t, 33916.0, got.TotalAfterDiscount)
	// 33916 * 0.11 = 3730.76 -> 3731
	assert.Equal(t, 3731.0, got.PpnAmount)
	assert.Equal(t, 37647.0, got.GrandTotal)
}

func TestComputeTotals_Empty(t *testing.T) {
	got := ComputeTotals(nil, nil, 10, 5, 11)
	assert.Equal(t, models.Totals{}, got)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 3.0, Round(2.5))
	assert.Equal(t, 2.0, Round(2.49))
	assert.Equal(t, 0.0, Round(0))
}

func TestWONumber(t *testing.T) {
	at := time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "wo-2025-03", CounterKey(at))
	assert.Equal(t, "BW25030001", FormatWONumber(at, 1))
	assert.Equal(t, "BW25030123", FormatWONumber(at, 123))
	assert.Equal(t, "BW251212345", FormatWONumber(time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), 12345))
}
