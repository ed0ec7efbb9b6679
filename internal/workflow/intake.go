package workflow

import (
	"strings"
	"time"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// JobInput is the Service Advisor intake form.
type JobInput struct {
	PoliceNumber           string `json:"policeNumber" validate:"required"`
	CustomerName           string `json:"customerName" validate:"required"`
	CustomerPhone          string `json:"customerPhone"`
	NamaSA                 string `json:"namaSA"`
	NomorRangka            string `json:"nomorRangka"`
	CarModel               string `json:"carModel" validate:"required"`
	WarnaMobil             string `json:"warnaMobil"`
	NamaAsuransi           string `json:"namaAsuransi" validate:"required"`
	JumlahPanel            int    `json:"jumlahPanel" validate:"gte=0"`
	StatusKendaraan        string `json:"statusKendaraan"`
	TanggalMasuk           string `json:"tanggalMasuk"`
	TanggalEstimasiSelesai string `json:"tanggalEstimasiSelesai"`
	Keterangan             string `json:"keterangan"`
}

// NewJob builds a job document from the intake form.
func NewJob(in JobInput, actor models.Actor, cfg models.Settings, now time.Time) (*models.Job, error) {
	if err := authorize(actor, models.PermCreateJob); err != nil {
		return nil, err
	}
	plate := models.NormalizePoliceNumber(in.PoliceNumber)
	switch {
	case plate == "":
		return nil, errs.Validation("policeNumber is required")
	case strings.TrimSpace(in.CustomerName) == "":
		return nil, errs.Validation("customerName is required")
	case strings.TrimSpace(in.CarModel) == "":
		return nil, errs.Validation("carModel is required")
	case strings.TrimSpace(in.NamaAsuransi) == "":
		return nil, errs.Validation("namaAsuransi is required")
	case in.JumlahPanel < 0:
		return nil, errs.Validation("jumlahPanel must not be negative")
	}
	if err := validDate("tanggalMasuk", in.TanggalMasuk); err != nil {
		return nil, err
	}
	if err := validDate("tanggalEstimasiSelesai", in.TanggalEstimasiSelesai); err != nil {
		return nil, err
	}
	if len(cfg.StatusPekerjaanOptions) == 0 {
		return nil, errs.Precondition("no production stages are configured")
	}

	vehicleStatus := in.StatusKendaraan
	if vehicleStatus == "" {
		vehicleStatus = models.VehicleBookingMasuk
	} else if len(cfg.StatusKendaraanOptions) > 0 && !cfg.HasVehicleStatus(vehicleStatus) {
		return nil, errs.Validation("unknown statusKendaraan %q", vehicleStatus)
	}

	position := models.PositionAtOwner
	masuk := in.TanggalMasuk
	if masuk != "" {
		position = models.PositionAtShop
	} else {
		masuk = models.FormatDate(now)
	}

	stage := cfg.StatusPekerjaanOptions[0]
	return &models.Job{
		PoliceNumber:           plate,
		CustomerName:           strings.TrimSpace(in.CustomerName),
		CustomerPhone:          strings.TrimSpace(in.CustomerPhone),
		NamaSA:                 in.NamaSA,
		NomorRangka:            strings.ToUpper(strings.TrimSpace(in.NomorRangka)),
		CarModel:               strings.TrimSpace(in.CarModel),
		WarnaMobil:             in.WarnaMobil,
		NamaAsuransi:           in.NamaAsuransi,
		JumlahPanel:            in.JumlahPanel,
		StatusKendaraan:        vehicleStatus,
		StatusPekerjaan:        stage,
		PosisiKendaraan:        position,
		StatusOrderPart:        models.PartDisplayNone,
		TanggalMasuk:           masuk,
		TanggalEstimasiSelesai: in.TanggalEstimasiSelesai,
		Keterangan:             in.Keterangan,
		History: []models.HistoryEntry{{
			Status:    stage,
			Timestamp: now,
			UpdatedBy: actor.Name(),
		}},
		FollowUpHistory: []models.FollowUpEntry{},
		LogPekerjaan:    []models.MechanicLog{},
		CreatedAt:       now,
		UpdatedAt:       now,
		LastUpdatedBy:   actor.Name(),
	}, nil
}

// DetailsInput carries the editable job fields. Nil fields are left unchanged.
type DetailsInput struct {
	CustomerName           *string         `json:"customerName"`
	CustomerPhone          *string         `json:"customerPhone"`
	NamaSA                 *string         `json:"namaSA"`
	NomorRangka            *string         `json:"nomorRangka"`
	CarModel               *string         `json:"carModel"`
	WarnaMobil             *string         `json:"warnaMobil"`
	NamaAsuransi           *string         `json:"namaAsuransi"`
	JumlahPanel            *int            `json:"jumlahPanel"`
	StatusKendaraan        *string         `json:"statusKendaraan"`
	PosisiKendaraan        *string         `json:"posisiKendaraan"`
	TanggalMasuk           *string         `json:"tanggalMasuk"`
	TanggalMulaiPerbaikan  *string         `json:"tanggalMulaiPerbaikan"`
	TanggalEstimasiSelesai *string         `json:"tanggalEstimasiSelesai"`
	TanggalSelesai         *string         `json:"tanggalSelesai"`
	TanggalDiambil         *string         `json:"tanggalDiambil"`
	Keterangan             *string         `json:"keterangan"`
	SATasks                *models.SATasks `json:"saTasks"`
}

// UpdateDetails edits the descriptive and scheduling fields of an open job.
// A vehicle status change is logged in history.
func UpdateDetails(job *models.Job, in DetailsInput, actor models.Actor, cfg models.Settings, now time.Time) (*models.Job, *models.Patch, error) {
	if err := authorize(actor, models.PermEditJob); err != nil {
		return nil, nil, err
	}
	if err := requireOpen(job); err != nil {
		return nil, nil, err
	}

	updated := cloneJob(job)
	p := models.NewPatch()

	setString := func(field string, v *string, dst *string, required bool) error {
		if v == nil {
			return nil
		}
		s := strings.TrimSpace(*v)
		if required && s == "" {
			return errs.Validation("%s must not be empty", field)
		}
		*dst = s
		p.SetField(field, s)
		return nil
	}
	for _, f := range []struct {
		field    string
		v        *string
		dst      *string
		required bool
	}{
		{"customerName", in.CustomerName, &updated.CustomerName, true},
		{"customerPhone", in.CustomerPhone, &updated.CustomerPhone, false},
		{"namaSA", in.NamaSA, &updated.NamaSA, false},
		{"carModel", in.CarModel, &updated.CarModel, true},
		{"warnaMobil", in.WarnaMobil, &updated.WarnaMobil, false},
		{"namaAsuransi", in.NamaAsuransi, &updated.NamaAsuransi, true},
		{"keterangan", in.Keterangan, &updated.Keterangan, false},
	} {
		if err := setString(f.field, f.v, f.dst, f.required); err != nil {
			return nil, nil, err
		}
	}
	if in.NomorRangka != nil {
		updated.NomorRangka = strings.ToUpper(strings.TrimSpace(*in.NomorRangka))
		p.SetField("nomorRangka", updated.NomorRangka)
	}

	if in.JumlahPanel != nil {
		if *in.JumlahPanel < 0 {
			return nil, nil, errs.Validation("jumlahPanel must not be negative")
		}
		updated.JumlahPanel = *in.JumlahPanel
		p.SetField("jumlahPanel", updated.JumlahPanel)
	}

	if in.PosisiKendaraan != nil {
		pos := *in.PosisiKendaraan
		if pos != models.PositionAtShop && pos != models.PositionAtOwner {
			return nil, nil, errs.Validation("posisiKendaraan must be %q or %q", models.PositionAtShop, models.PositionAtOwner)
		}
		updated.PosisiKendaraan = pos
		p.SetField("posisiKendaraan", pos)
	}

	for _, d := range []struct {
		field string
		v     *string
		dst   *string
	}{
		{"tanggalMasuk", in.TanggalMasuk, &updated.TanggalMasuk},
		{"tanggalMulaiPerbaikan", in.TanggalMulaiPerbaikan, &updated.TanggalMulaiPerbaikan},
		{"tanggalEstimasiSelesai", in.TanggalEstimasiSelesai, &updated.TanggalEstimasiSelesai},
		{"tanggalSelesai", in.TanggalSelesai, &updated.TanggalSelesai},
		{"tanggalDiambil", in.TanggalDiambil, &updated.TanggalDiambil},
	} {
		if d.v == nil {
			continue
		}
		if err := validDate(d.field, *d.v); err != nil {
			return nil, nil, err
		}
		*d.dst = *d.v
		p.SetField(d.field, *d.v)
	}

	if in.StatusKendaraan != nil && *in.StatusKendaraan != job.StatusKendaraan {
		status := *in.StatusKendaraan
		if !cfg.HasVehicleStatus(status) {
			return nil, nil, errs.Validation("unknown statusKendaraan %q", status)
		}
		updated.StatusKendaraan = status
		p.SetField("statusKendaraan", status)
		entry := models.HistoryEntry{Status: status, Timestamp: now, UpdatedBy: actor.Name(), IsRework: job.IsRework}
		updated.History = append(updated.History, entry)
		p.PushField("history", entry)
		if status == models.VehiclePickedUp && updated.TanggalDiambil == "" {
			updated.TanggalDiambil = models.FormatDate(now)
			p.SetField("tanggalDiambil", updated.TanggalDiambil)
		}
	}

	if in.SATasks != nil {
		updated.SATasks = *in.SATasks
		p.SetField("saTasks", updated.SATasks)
	}

	if p.IsEmpty() {
		return nil, nil, errs.Validation("nothing to update")
	}
	return updated, p, nil
}
