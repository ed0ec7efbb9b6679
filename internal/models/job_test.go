package models

import (
	"reflect"
	"testing"
	"time"
)

func TestNormalizePoliceNumber(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"b 1234 xyz", "B1234XYZ"},
		{"  D\t4321 AB ", "D4321AB"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePoliceNumber(tt.in); got != tt.want {
			t.Errorf("NormalizePoliceNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	// 20:00 UTC is already the next day in Jakarta.
	ts := time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC).In(jakarta)
	if got := FormatDate(ts); got != "2025-03-15" {
		t.Errorf("FormatDate = %q, want 2025-03-15", got)
	}
}

func TestFinanceDocs(t *testing.T) {
	var docs FinanceDocs
	if docs.Complete() {
		t.Fatal("empty checklist should not be complete")
	}
	if n := len(docs.Missing()); n != 9 {
		t.Errorf("Missing() = %d entries, want 9", n)
	}

	docs = FinanceDocs{
		HasSpkAsuransi: true, HasWoEstimasi: true, HasApprovalBiaya: true,
		HasFotoPeneng: true, HasFotoEpoxy: true, HasGesekRangka: true,
		HasFotoSelesai: true, HasInvoice: true,
	}
	if got := docs.Missing(); !reflect.DeepEqual(got, []string{"hasFakturPajak"}) {
		t.Errorf("Missing() = %v", got)
	}
	docs.HasFakturPajak = true
	if !docs.Complete() {
		t.Error("all documents present should be complete")
	}
}

func TestSATasks_Pending(t *testing.T) {
	tasks := SATasks{
		NeedsSpkAppeal:        true,
		SpkAppealDone:         true,
		NeedsSupplement:       true,
		NeedsCustomerApproval: true,
		EstimationDone:        true,
	}
	want := []string{"supplement", "customerApproval"}
	if got := tasks.Pending(); !reflect.DeepEqual(got, want) {
		t.Errorf("Pending() = %v, want %v", got, want)
	}
	if got := (SATasks{}).Pending(); got != nil {
		t.Errorf("Pending() on empty tasks = %v, want nil", got)
	}
}

func TestJob_Derived(t *testing.T) {
	job := &Job{HargaJasa: 1_500_000, HargaPart: 2_250_000, NamaAsuransi: InsurerSelfPay}
	if job.Revenue() != 3_750_000 {
		t.Errorf("Revenue() = %v", job.Revenue())
	}
	if !job.IsSelfPay() {
		t.Error("self-pay insurer not detected")
	}
	if job.PartItems() != nil {
		t.Error("PartItems() without estimate should be nil")
	}

	job.EstimateData = &EstimateData{PartItems: []PartItem{{Name: "Bumper", Qty: 1, Price: 900_000}}}
	if len(job.PartItems()) != 1 {
		t.Errorf("PartItems() = %v", job.PartItems())
	}

	costs := CostData{HargaModalBahan: 125_000, HargaBeliPart: 600_000, JasaExternal: 75_000}
	if costs.Total() != 800_000 {
		t.Errorf("Total() = %v", costs.Total())
	}
}
