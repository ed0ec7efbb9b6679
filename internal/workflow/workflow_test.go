package workflow

import (
	"time"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

var (
	testNow = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

	manager  = models.Actor{UserID: "u-mgr", Email: "manager@bengkel.test", Role: models.RoleManager}
	foreman  = models.Actor{UserID: "u-fm", Email: "foreman@bengkel.test", Role: models.RoleForeman}
	sa       = models.Actor{UserID: "u-sa", Email: "sa@bengkel.test", Role: models.RoleServiceAdvisor}
	partman  = models.Actor{UserID: "u-pm", Email: "partman@bengkel.test", Role: models.RolePartman}
	finance  = models.Actor{UserID: "u-fin", Email: "finance@bengkel.test", Role: models.RoleFinance}
	crc      = models.Actor{UserID: "u-crc", Email: "crc@bengkel.test", Role: models.RoleCRC}
	assPart  = models.Actor{UserID: "u-ap", Email: "asspart@bengkel.test", Role: models.RoleAssPartman}
	saWithFA = models.Actor{UserID: "u-sa2", Email: "sa2@bengkel.test", Role: models.RoleServiceAdvisor, FinanceAccess: true}
)

func testSettings() models.Settings {
	return models.Settings{
		PpnPercentage: 11,
		StatusPekerjaanOptions: []string{
			"Belum Mulai Perbaikan", "Las Ketok", "Bongkar", "Dempul", "Cat", "Poles",
			"Pemasangan", "Finishing", "Quality Control", "Tunggu Part", "Selesai",
		},
		StatusKendaraanOptions: []string{
			"Booking Masuk", "Tunggu SPK", "Work In Progress", "Rawat Jalan",
			"Tunggu Pengambilan", "Selesai", "Sudah Di ambil Pemilik",
		},
		InsuranceOptions: []models.InsuranceOption{
			{Name: "Umum / Pribadi", Jasa: 10, Part: 5},
			{Name: "ACA", Jasa: 10, Part: 7.5},
			{Name: "Garda Oto", Jasa: 10, Part: 5},
		},
	}
}

func openJob() *models.Job {
	return &models.Job{
		PoliceNumber:    "B1234XYZ",
		CustomerName:    "Budi",
		CarModel:        "Mazda CX-5",
		NamaAsuransi:    "Garda Oto",
		JumlahPanel:     4,
		StatusKendaraan: models.VehicleBookingMasuk,
		StatusPekerjaan: models.StageNotStarted,
		PosisiKendaraan: models.PositionAtShop,
		StatusOrderPart: models.PartDisplayNone,
		TanggalMasuk:    "2025-03-10",
	}
}

func ptr[T any](v T) *T { return &v }
