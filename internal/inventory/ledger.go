// Package inventory implements the material and sparepart stock ledger:
// purchase conversion into base units, stock-out checks and low-stock signals.
package inventory

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// gramsPerKilogram converts Kilogram purchases into the gram base unit.
var gramsPerKilogram = decimal.NewFromInt(1000)

// unitCostPlaces is the precision kept for hargaModal.
const unitCostPlaces = 4

// StockInInput is one purchase. Qty is in purchase units (boxes, kilograms,
// liters or base units). ItemsPerBox and Density are only read for Box and
// Liter items.
type StockInInput struct {
	Qty         float64 `json:"qty" validate:"gt=0"`
	TotalPrice  float64 `json:"totalPrice" validate:"gt=0"`
	ItemsPerBox float64 `json:"itemsPerBox"`
	Density     float64 `json:"density"`
}

// StockInResult is the effect of a purchase on the item.
type StockInResult struct {
	DeltaStock  float64 `json:"deltaStock"`
	NewUnitCost float64 `json:"newUnitCost"`
}

// ConvertedQty turns a purchase quantity into the item's base unit.
func ConvertedQty(unit models.Unit, in StockInInput) (decimal.Decimal, error) {
	qty := decimal.NewFromFloat(in.Qty)
	switch unit {
	case models.UnitBox:
		if in.ItemsPerBox <= 0 {
			return decimal.Zero, errs.Validation("itemsPerBox is required for Box items")
		}
		return qty.Mul(decimal.NewFromFloat(in.ItemsPerBox)), nil
	case models.UnitKilogram:
		return qty.Mul(gramsPerKilogram), nil
	case models.UnitLiter:
		if in.Density <= 0 {
			return decimal.Zero, errs.Validation("density (grams per liter) is required for Liter items")
		}
		return qty.Mul(decimal.NewFromFloat(in.Density)), nil
	case models.UnitPcs, models.UnitGram, models.UnitKaleng:
		return qty, nil
	default:
		return decimal.Zero, errs.Validation("unknown unit %q", unit)
	}
}

// StockIn computes the stock increase and the new unit cost of a purchase.
// The unit cost replaces the previous hargaModal (last-purchase costing).
func StockIn(item models.InventoryItem, in StockInInput) (StockInResult, error) {
	if in.Qty <= 0 {
		return StockInResult{}, errs.Validation("purchase quantity must be greater than 0")
	}
	if in.TotalPrice <= 0 {
		return StockInResult{}, errs.Validation("total purchase price must be greater than 0")
	}
	converted, err := ConvertedQty(item.Satuan, in)
	if err != nil {
		return StockInResult{}, err
	}
	if !converted.IsPositive() {
		return StockInResult{}, errs.Validation("converted quantity must be greater than 0")
	}
	unitCost := decimal.NewFromFloat(in.TotalPrice).Div(converted).Round(unitCostPlaces)
	return StockInResult{
		DeltaStock:  converted.InexactFloat64(),
		NewUnitCost: unitCost.InexactFloat64(),
	}, nil
}

// StockInPatch is the atomic item update for a purchase. The conversion
// parameters used are remembered on the item for the next purchase.
func StockInPatch(item models.InventoryItem, in StockInInput, res StockInResult, now time.Time) *models.Patch {
	p := models.NewPatch().
		IncField("stok", res.DeltaStock).
		SetField("hargaModal", res.NewUnitCost).
		SetField("updatedAt", now)
	switch item.Satuan {
	case models.UnitBox:
		p.SetField("isiPerBox", in.ItemsPerBox)
	case models.UnitLiter:
		p.SetField("densitas", in.Density)
	}
	return p
}

// MasterDataPatch writes the editable master fields of item. Stock is left
// out so an edit never overwrites a concurrent stock movement.
func MasterDataPatch(item models.InventoryItem, now time.Time) *models.Patch {
	return models.NewPatch().
		SetField("tipe", item.Tipe).
		SetField("namaBahan", item.NamaBahan).
		SetField("kodeBahan", item.KodeBahan).
		SetField("satuan", item.Satuan).
		SetField("minStok", item.MinStok).
		SetField("hargaModal", item.HargaModal).
		SetField("hargaJual", item.HargaJual).
		SetField("supplier", item.Supplier).
		SetField("isiPerBox", item.IsiPerBox).
		SetField("densitas", item.Densitas).
		SetField("updatedAt", now)
}

// StockOut checks that qty base units can be taken from item and returns the
// stock delta. Stock never goes below zero.
func StockOut(item models.InventoryItem, qty float64) (float64, error) {
	if qty <= 0 {
		return 0, errs.Validation("quantity must be greater than 0")
	}
	if qty > item.Stok {
		return 0, errs.Conflict("not enough stock for %s: %v %s available, %v requested",
			item.NamaBahan, item.Stok, item.Satuan, qty)
	}
	return -qty, nil
}

// IsLowStock reports the reorder signal.
func IsLowStock(item models.InventoryItem) bool {
	return item.Stok <= item.MinStok
}

// LowStock filters items at or below their reorder threshold.
func LowStock(items []models.InventoryItem) []models.InventoryItem {
	var out []models.InventoryItem
	for _, it := range items {
		if IsLowStock(it) {
			out = append(out, it)
		}
	}
	return out
}

// NormalizeItem validates master data and normalizes the item code in place.
func NormalizeItem(item *models.InventoryItem) error {
	item.NamaBahan = strings.TrimSpace(item.NamaBahan)
	item.KodeBahan = strings.ToUpper(strings.TrimSpace(item.KodeBahan))
	if item.NamaBahan == "" {
		return errs.Validation("namaBahan is required")
	}
	if item.Tipe != models.ItemPart && item.Tipe != models.ItemBahan {
		return errs.Validation("tipe must be %q or %q", models.ItemPart, models.ItemBahan)
	}
	if item.Satuan == "" {
		item.Satuan = models.UnitPcs
	}
	if !models.IsValidUnit(item.Satuan) {
		return errs.Validation("unknown unit %q", item.Satuan)
	}
	if item.Stok < 0 || item.MinStok < 0 || item.HargaModal < 0 || item.HargaJual < 0 {
		return errs.Validation("stock and prices must not be negative")
	}
	if item.IsiPerBox < 0 || item.Densitas < 0 {
		return errs.Validation("conversion factors must not be negative")
	}
	return nil
}

// NewPartStub is the placeholder master record created when an estimate
// references an unknown part number.
func NewPartStub(part models.PartItem, now time.Time) models.InventoryItem {
	return models.InventoryItem{
		Tipe:       models.ItemPart,
		NamaBahan:  part.Name,
		KodeBahan:  strings.ToUpper(strings.TrimSpace(part.Number)),
		Satuan:     models.UnitPcs,
		Stok:       0,
		MinStok:    1,
		HargaModal: 0,
		HargaJual:  part.Price,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// MaterialLine requests qty base units of one item.
type MaterialLine struct {
	ItemID string  `json:"itemId" validate:"required"`
	Qty    float64 `json:"qty" validate:"gt=0"`
}

// MergeLines sums duplicate item lines, keeping first-seen order.
func MergeLines(lines []MaterialLine) ([]MaterialLine, error) {
	var out []MaterialLine
	index := map[string]int{}
	for _, l := range lines {
		if l.ItemID == "" {
			return nil, errs.Validation("itemId is required")
		}
		if l.Qty <= 0 {
			return nil, errs.Validation("quantity must be greater than 0")
		}
		if i, ok := index[l.ItemID]; ok {
			out[i].Qty += l.Qty
			continue
		}
		index[l.ItemID] = len(out)
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil, errs.Validation("select at least one material")
	}
	return out, nil
}
