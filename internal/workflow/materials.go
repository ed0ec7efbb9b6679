package workflow

import (
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// MaterialCharge is one material drawn from stock for a job, in base units.
type MaterialCharge struct {
	Item models.InventoryItem
	Qty  float64
}

// Cost is the charge at the item's current unit cost.
func (c MaterialCharge) Cost() float64 {
	return c.Qty * c.Item.HargaModal
}

// ChargeMaterials books material cost onto the job as deltas on
// costData.hargaModalBahan and grossProfit. The stock side is written by the
// caller in the same transaction.
func ChargeMaterials(job *models.Job, charges []MaterialCharge, actor models.Actor) (*models.Job, *models.Patch, float64, error) {
	if err := authorize(actor, models.PermAssignMaterials); err != nil {
		return nil, nil, 0, err
	}
	if err := requireOpen(job); err != nil {
		return nil, nil, 0, err
	}
	if len(charges) == 0 {
		return nil, nil, 0, errs.Validation("select at least one material")
	}
	var total float64
	for _, c := range charges {
		if c.Qty <= 0 {
			return nil, nil, 0, errs.Validation("quantity for %s must be greater than 0", c.Item.NamaBahan)
		}
		total += c.Cost()
	}

	updated := cloneJob(job)
	updated.CostData.HargaModalBahan += total
	updated.GrossProfit -= total
	p := models.NewPatch().
		IncField("costData.hargaModalBahan", total).
		IncField("grossProfit", -total)
	return updated, p, total, nil
}
