package models

import (
	"fmt"
	"time"
)

// InsuranceOption is one row of the insurer discount table (percentages).
type InsuranceOption struct {
	Name string  `bson:"name" json:"name" yaml:"name"`
	Jasa float64 `bson:"jasa" json:"jasa" yaml:"jasa"`
	Part float64 `bson:"part" json:"part" yaml:"part"`
}

// MessageTemplate is a customer message template used by the CRC.
type MessageTemplate struct {
	Title   string `bson:"title" json:"title" yaml:"title"`
	Message string `bson:"message" json:"message" yaml:"message"`
}

// Settings is the workshop configuration document. Components receive it by
// value as a snapshot; use Clone before handing it to code that may mutate it.
type Settings struct {
	PpnPercentage            float64           `bson:"ppnPercentage" json:"ppnPercentage" yaml:"ppnPercentage"`
	MonthlyTarget            float64           `bson:"monthlyTarget" json:"monthlyTarget" yaml:"monthlyTarget"`
	WeeklyTarget             float64           `bson:"weeklyTarget" json:"weeklyTarget" yaml:"weeklyTarget"`
	AfterServiceFollowUpDays int               `bson:"afterServiceFollowUpDays" json:"afterServiceFollowUpDays" yaml:"afterServiceFollowUpDays"`
	NationalHolidays         []string          `bson:"nationalHolidays" json:"nationalHolidays" yaml:"nationalHolidays"`
	MechanicNames            []string          `bson:"mechanicNames" json:"mechanicNames" yaml:"mechanicNames"`
	ServiceAdvisors          []string          `bson:"serviceAdvisors" json:"serviceAdvisors" yaml:"serviceAdvisors"`
	InsuranceOptions         []InsuranceOption `bson:"insuranceOptions" json:"insuranceOptions" yaml:"insuranceOptions"`
	StatusKendaraanOptions   []string          `bson:"statusKendaraanOptions" json:"statusKendaraanOptions" yaml:"statusKendaraanOptions"`
	StatusPekerjaanOptions   []string          `bson:"statusPekerjaanOptions" json:"statusPekerjaanOptions" yaml:"statusPekerjaanOptions"`
	WhatsAppTemplates        []MessageTemplate `bson:"whatsappTemplates" json:"whatsappTemplates" yaml:"whatsappTemplates"`
	UpdatedAt                time.Time         `bson:"updatedAt" json:"updatedAt" yaml:"-"`
	UpdatedBy                string            `bson:"updatedBy,omitempty" json:"updatedBy,omitempty" yaml:"-"`
}

// StageIndex returns the ordinal of stage in the configured stage list, or -1.
func (s Settings) StageIndex(stage string) int {
	for i, st := range s.StatusPekerjaanOptions {
		if st == stage {
			return i
		}
	}
	return -1
}

// DiscountFor returns the default jasa and part discount for an insurer.
func (s Settings) DiscountFor(insurer string) (jasa, part float64, ok bool) {
	for _, opt := range s.InsuranceOptions {
		if opt.Name == insurer {
			return opt.Jasa, opt.Part, true
		}
	}
	return 0, 0, false
}

// HasVehicleStatus checks the vehicle status vocabulary.
func (s Settings) HasVehicleStatus(status string) bool {
	for _, st := range s.StatusKendaraanOptions {
		if st == status {
			return true
		}
	}
	return false
}

// Validate checks the invariants the workflow relies on.
func (s Settings) Validate() error {
	if s.PpnPercentage < 0 || s.PpnPercentage > 100 {
		return fmt.Errorf("ppnPercentage must be between 0 and 100")
	}
	stages := s.StatusPekerjaanOptions
	if len(stages) < 2 {
		return fmt.Errorf("statusPekerjaanOptions needs at least two stages")
	}
	if stages[0] != StageNotStarted {
		return fmt.Errorf("first stage must be %q", StageNotStarted)
	}
	if stages[len(stages)-1] != StageDone {
		return fmt.Errorf("last stage must be %q", StageDone)
	}
	seen := make(map[string]bool, len(stages))
	for _, st := range stages {
		if st == "" {
			return fmt.Errorf("stage names must not be empty")
		}
		if seen[st] {
			return fmt.Errorf("duplicate stage %q", st)
		}
		seen[st] = true
	}
	for _, opt := range s.InsuranceOptions {
		if opt.Name == "" {
			return fmt.Errorf("insurer name must not be empty")
		}
		if opt.Jasa < 0 || opt.Jasa > 100 || opt.Part < 0 || opt.Part > 100 {
			return fmt.Errorf("discounts for %q must be between 0 and 100", opt.Name)
		}
	}
	if s.AfterServiceFollowUpDays < 0 {
		return fmt.Errorf("afterServiceFollowUpDays must not be negative")
	}
	return nil
}

// Clone returns a deep copy so a snapshot can be shared safely.
func (s Settings) Clone() Settings {
	out := s
	out.NationalHolidays = append([]string(nil), s.NationalHolidays...)
	out.MechanicNames = append([]string(nil), s.MechanicNames...)
	out.ServiceAdvisors = append([]string(nil), s.ServiceAdvisors...)
	out.InsuranceOptions = append([]InsuranceOption(nil), s.InsuranceOptions...)
	out.StatusKendaraanOptions = append([]string(nil), s.StatusKendaraanOptions...)
	out.StatusPekerjaanOptions = append([]string(nil), s.StatusPekerjaanOptions...)
	out.WhatsAppTemplates = append([]MessageTemplate(nil), s.WhatsAppTemplates...)
	return out
}
