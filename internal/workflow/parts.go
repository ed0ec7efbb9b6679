package workflow

import (
	"fmt"
	"strings"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// PartAction is a Partman action on the parts sub-workflow.
type PartAction string

const (
	PartConfirm        PartAction = "confirm"
	PartArrivedAll     PartAction = "arrived"
	PartArrivedPartial PartAction = "arrived-partial"
	PartIndent         PartAction = "indent"
	PartBackToOnOrder  PartAction = "on-order"
	PartCancel         PartAction = "cancel"
)

type partTransition struct {
	from    []string
	to      string
	display string
}

// partTransitions is the parts state machine: allowed source states of each
// action and the internal/display states it moves to.
var partTransitions = map[PartAction]partTransition{
	PartConfirm: {
		from:    []string{models.PartOrderAwaiting, models.PartOrderOrdered},
		to:      models.PartOrderOrdered,
		display: models.PartDisplayOnOrder,
	},
	PartArrivedAll: {
		from:    []string{models.PartOrderOrdered},
		to:      models.PartOrderArrived,
		display: models.PartDisplayReady,
	},
	// Partial arrival stays "on order" internally so the rest can still arrive.
	PartArrivedPartial: {
		from:    []string{models.PartOrderOrdered},
		to:      models.PartOrderOrdered,
		display: models.PartDisplayPartial,
	},
	PartIndent: {
		from:    []string{models.PartOrderOrdered},
		to:      models.PartOrderIndent,
		display: models.PartDisplayIndent,
	},
	PartBackToOnOrder: {
		from:    []string{models.PartOrderIndent},
		to:      models.PartOrderOrdered,
		display: models.PartDisplayOnOrder,
	},
	PartCancel: {
		from:    []string{models.PartOrderAwaiting, models.PartOrderOrdered},
		to:      models.PartOrderCancelled,
		display: models.PartDisplayNone,
	},
}

// AllowedFrom returns the partOrderStatus values action may start from.
func AllowedFrom(action PartAction) []string {
	return append([]string(nil), partTransitions[action].from...)
}

func checkPartAction(job *models.Job, action PartAction, actor models.Actor) (partTransition, error) {
	t, ok := partTransitions[action]
	if !ok {
		return t, errs.Validation("unknown part action %q", action)
	}
	if err := authorize(actor, models.PermManageParts); err != nil {
		return t, err
	}
	if err := requireOpen(job); err != nil {
		return t, err
	}
	for _, s := range t.from {
		if job.PartOrderStatus == s {
			return t, nil
		}
	}
	current := job.PartOrderStatus
	if current == models.PartOrderNone {
		current = "no order"
	}
	return t, errs.Precondition("cannot %s parts while status is %q (allowed from: %s)",
		strings.ReplaceAll(string(action), "-", " "), current, strings.Join(t.from, ", "))
}

func setPartStatus(j *models.Job, p *models.Patch, internal, display string) {
	j.PartOrderStatus = internal
	j.StatusOrderPart = display
	p.SetField("partOrderStatus", internal).SetField("statusOrderPart", display)
}

// startParts enters the sub-workflow the first time an estimate has parts.
func startParts(j *models.Job, p *models.Patch) {
	if len(j.PartItems()) > 0 && j.PartOrderStatus == models.PartOrderNone {
		setPartStatus(j, p, models.PartOrderAwaiting, models.PartDisplayAwaiting)
	}
}

// PartConfirmation selects one estimate part line for ordering together with
// the actual purchase price per unit.
type PartConfirmation struct {
	Index           int     `json:"index" validate:"gte=0"`
	HargaBeliAktual float64 `json:"hargaBeliAktual"`
}

// ConfirmOrder orders the selected lines that are not ordered yet. The purchase
// cost is applied as an atomic delta on costData.hargaBeliPart and grossProfit.
func ConfirmOrder(job *models.Job, lines []PartConfirmation, actor models.Actor) (*models.Job, *models.Patch, error) {
	t, err := checkPartAction(job, PartConfirm, actor)
	if err != nil {
		return nil, nil, err
	}
	items := job.PartItems()

	var selected []PartConfirmation
	seen := map[int]bool{}
	for _, l := range lines {
		if l.Index < 0 || l.Index >= len(items) {
			return nil, nil, errs.Validation("part line %d does not exist", l.Index)
		}
		if items[l.Index].IsOrdered || seen[l.Index] {
			continue
		}
		seen[l.Index] = true
		selected = append(selected, l)
	}
	if len(selected) == 0 {
		return nil, nil, errs.Validation("select at least one part that has not been ordered yet")
	}
	for _, l := range selected {
		if l.HargaBeliAktual <= 0 {
			return nil, nil, errs.Validation("enter the purchase price for %s", items[l.Index].Name)
		}
	}

	updated := cloneJob(job)
	p := models.NewPatch()
	var additional float64
	for _, l := range selected {
		item := &updated.EstimateData.PartItems[l.Index]
		item.IsOrdered = true
		item.HargaBeliAktual = l.HargaBeliAktual
		additional += l.HargaBeliAktual * item.Qty
		ordered := fmt.Sprintf("estimateData.partItems.%d.isOrdered", l.Index)
		// The cost delta is booked only if no one ordered the line meanwhile.
		p.ExpectNot(ordered, true).
			SetField(ordered, true).
			SetField(fmt.Sprintf("estimateData.partItems.%d.hargaBeliAktual", l.Index), l.HargaBeliAktual)
	}
	updated.CostData.HargaBeliPart += additional
	updated.GrossProfit -= additional
	p.IncField("costData.hargaBeliPart", additional).IncField("grossProfit", -additional)
	setPartStatus(updated, p, t.to, t.display)
	return updated, p, nil
}

// MoveParts applies a status-only parts action: arrival, indent or back to on-order.
func MoveParts(job *models.Job, action PartAction, actor models.Actor) (*models.Job, *models.Patch, error) {
	if action == PartConfirm || action == PartCancel {
		return nil, nil, errs.Validation("part action %q needs its own operation", action)
	}
	t, err := checkPartAction(job, action, actor)
	if err != nil {
		return nil, nil, err
	}
	if action == PartArrivedAll {
		for _, item := range job.PartItems() {
			if !item.IsOrdered {
				return nil, nil, errs.Precondition("part %s has not been ordered yet", item.Name)
			}
		}
	}
	updated := cloneJob(job)
	p := models.NewPatch()
	setPartStatus(updated, p, t.to, t.display)
	return updated, p, nil
}

// CancelOrder cancels procurement. The whole recorded part purchase cost is
// returned to gross profit and zeroed, regardless of which lines were ordered.
func CancelOrder(job *models.Job, actor models.Actor) (*models.Job, *models.Patch, error) {
	t, err := checkPartAction(job, PartCancel, actor)
	if err != nil {
		return nil, nil, err
	}
	updated := cloneJob(job)
	p := models.NewPatch()
	if recorded := job.CostData.HargaBeliPart; recorded > 0 {
		updated.GrossProfit += recorded
		updated.CostData.HargaBeliPart = 0
		p.IncField("grossProfit", recorded).SetField("costData.hargaBeliPart", 0.0)
	}
	setPartStatus(updated, p, t.to, t.display)
	return updated, p, nil
}
