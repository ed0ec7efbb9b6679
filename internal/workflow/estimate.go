package workflow

import (
	"strings"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/estimate"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// EstimateInput is the estimate form. Nil discounts fall back to the insurer's
// row in the settings discount table.
type EstimateInput struct {
	JasaItems    []models.JasaItem `json:"jasaItems" validate:"dive"`
	PartItems    []models.PartItem `json:"partItems" validate:"dive"`
	DiscountJasa *float64          `json:"discountJasa" validate:"omitempty,gte=0,lte=100"`
	DiscountPart *float64          `json:"discountPart" validate:"omitempty,gte=0,lte=100"`
}

// ApplyEstimate saves the estimate lines and totals and sets revenue.
// Gross profit becomes the post-discount total minus whatever expenses are
// already recorded. The parts sub-workflow starts if this is the first
// estimate with parts.
func ApplyEstimate(job *models.Job, in EstimateInput, actor models.Actor, cfg models.Settings) (*models.Job, *models.Patch, error) {
	if err := authorize(actor, models.PermSaveEstimate); err != nil {
		return nil, nil, err
	}
	if err := requireOpen(job); err != nil {
		return nil, nil, err
	}

	defJasa, defPart, _ := cfg.DiscountFor(job.NamaAsuransi)
	discJasa, discPart := defJasa, defPart
	if in.DiscountJasa != nil {
		discJasa = *in.DiscountJasa
	}
	if in.DiscountPart != nil {
		discPart = *in.DiscountPart
	}
	if discJasa < 0 || discJasa > 100 || discPart < 0 || discPart > 100 {
		return nil, nil, errs.Validation("discounts must be between 0 and 100 percent")
	}

	jasa := make([]models.JasaItem, 0, len(in.JasaItems))
	for i, item := range in.JasaItems {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			return nil, nil, errs.Validation("jasa line %d needs a name", i+1)
		}
		if item.Price < 0 {
			return nil, nil, errs.Validation("jasa %s has a negative price", item.Name)
		}
		jasa = append(jasa, item)
	}

	// Partman state follows the part number; lines without one keep the state
	// of the unnumbered line at the same position.
	previous := map[string]models.PartItem{}
	unnumbered := map[int]models.PartItem{}
	for i, item := range job.PartItems() {
		if item.Number != "" {
			previous[item.Number] = item
		} else {
			unnumbered[i] = item
		}
	}
	parts := make([]models.PartItem, 0, len(in.PartItems))
	for i, item := range in.PartItems {
		item.Name = strings.TrimSpace(item.Name)
		item.Number = strings.ToUpper(strings.TrimSpace(item.Number))
		if item.Name == "" {
			return nil, nil, errs.Validation("part line %d needs a name", i+1)
		}
		if item.Qty <= 0 {
			return nil, nil, errs.Validation("part %s needs a quantity of at least 1", item.Name)
		}
		if item.Price < 0 {
			return nil, nil, errs.Validation("part %s has a negative price", item.Name)
		}
		// Ordering state belongs to the Partman, not to the estimate form.
		item.IsOrdered = false
		item.HargaBeliAktual = 0
		prev, ok := previous[item.Number]
		if item.Number == "" {
			prev, ok = unnumbered[i]
		}
		if ok {
			item.IsOrdered = prev.IsOrdered
			item.HargaBeliAktual = prev.HargaBeliAktual
		}
		parts = append(parts, item)
	}

	totals := estimate.ComputeTotals(jasa, parts, discJasa, discPart, cfg.PpnPercentage)
	data := &models.EstimateData{
		JasaItems:    jasa,
		PartItems:    parts,
		DiscountJasa: discJasa,
		DiscountPart: discPart,
		Totals:       totals,
	}

	updated := cloneJob(job)
	updated.EstimateData = data
	updated.HargaJasa = estimate.JasaRevenue(totals)
	updated.HargaPart = estimate.PartRevenue(totals)
	updated.GrossProfit = totals.TotalAfterDiscount - updated.CostData.Total()

	p := models.NewPatch().
		SetField("estimateData", data).
		SetField("hargaJasa", updated.HargaJasa).
		SetField("hargaPart", updated.HargaPart).
		SetField("grossProfit", updated.GrossProfit)
	startParts(updated, p)
	return updated, p, nil
}

// ConfirmWO marks the estimate as a work order. woNumber is only written when
// the job has none yet.
func ConfirmWO(job *models.Job, woNumber string) (*models.Job, *models.Patch, error) {
	if err := requireOpen(job); err != nil {
		return nil, nil, err
	}
	updated := cloneJob(job)
	p := models.NewPatch()
	if job.WONumber == "" {
		if woNumber == "" {
			return nil, nil, errs.Validation("a WO number is required")
		}
		updated.WONumber = woNumber
		p.ExpectEmpty("woNumber").SetField("woNumber", woNumber)
	}
	updated.IsWoConfirmed = true
	p.SetField("isWoConfirmed", true)
	return updated, p, nil
}

// UnknownParts returns the part lines whose numbers are not in known, once per number.
func UnknownParts(items []models.PartItem, known map[string]bool) []models.PartItem {
	var out []models.PartItem
	seen := map[string]bool{}
	for _, item := range items {
		if item.Number == "" || known[item.Number] || seen[item.Number] {
			continue
		}
		seen[item.Number] = true
		out = append(out, item)
	}
	return out
}
