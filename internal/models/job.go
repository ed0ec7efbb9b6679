package models

import (
	"strings"
	"time"
	"unicode"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Fixed vocabulary the workflow depends on. The full stage and vehicle status
// lists live in Settings.
const (
	StageNotStarted = "Belum Mulai Perbaikan"
	StageDone       = "Selesai"

	VehicleWorkInProgress = "Work In Progress"
	VehiclePickedUp       = "Sudah Di ambil Pemilik"
	VehicleBookingMasuk   = "Booking Masuk"
	VehicleRawatJalan     = "Rawat Jalan"

	PositionAtShop  = "Di Bengkel"
	PositionAtOwner = "Di Pemilik"

	InsurerSelfPay = "Umum / Pribadi"
)

// Internal part procurement states (partOrderStatus).
const (
	PartOrderNone      = ""
	PartOrderAwaiting  = "Menunggu Konfirmasi Partman"
	PartOrderOrdered   = "Part Sedang Dipesan"
	PartOrderArrived   = "Part Telah Tiba"
	PartOrderIndent    = "Menunggu Part Indent"
	PartOrderCancelled = "Order Dibatalkan"
)

// Display part availability states (statusOrderPart).
const (
	PartDisplayAwaiting = "Menunggu Konfirmasi Partman"
	PartDisplayOnOrder  = "On Order"
	PartDisplayReady    = "Ready"
	PartDisplayPartial  = "Ready Sebagian"
	PartDisplayIndent   = "Part Indent"
	PartDisplayNone     = "Tidak Ada"
)

// Job is one repair order in the shared-bengkel-jobs collection.
type Job struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PoliceNumber  string             `bson:"policeNumber" json:"policeNumber"`
	WONumber      string             `bson:"woNumber,omitempty" json:"woNumber,omitempty"`
	CustomerName  string             `bson:"customerName" json:"customerName"`
	CustomerPhone string             `bson:"customerPhone,omitempty" json:"customerPhone,omitempty"`
	NamaSA        string             `bson:"namaSA,omitempty" json:"namaSA,omitempty"`
	NomorRangka   string             `bson:"nomorRangka,omitempty" json:"nomorRangka,omitempty"`

	CarModel     string `bson:"carModel" json:"carModel"`
	WarnaMobil   string `bson:"warnaMobil,omitempty" json:"warnaMobil,omitempty"`
	NamaAsuransi string `bson:"namaAsuransi" json:"namaAsuransi"`
	JumlahPanel  int    `bson:"jumlahPanel" json:"jumlahPanel"`

	StatusKendaraan string `bson:"statusKendaraan" json:"statusKendaraan"`
	StatusPekerjaan string `bson:"statusPekerjaan" json:"statusPekerjaan"`
	PosisiKendaraan string `bson:"posisiKendaraan" json:"posisiKendaraan"`

	IsRework                  bool   `bson:"isRework" json:"isRework"`
	ReworkReason              string `bson:"reworkReason,omitempty" json:"reworkReason,omitempty"`
	ReworkResponsibleMechanic string `bson:"reworkResponsibleMechanic,omitempty" json:"reworkResponsibleMechanic,omitempty"`
	ReworkStall               string `bson:"reworkStall,omitempty" json:"reworkStall,omitempty"`

	HargaJasa    float64       `bson:"hargaJasa" json:"hargaJasa"`
	HargaPart    float64       `bson:"hargaPart" json:"hargaPart"`
	CostData     CostData      `bson:"costData" json:"costData"`
	GrossProfit  float64       `bson:"grossProfit" json:"grossProfit"`
	EstimateData *EstimateData `bson:"estimateData,omitempty" json:"estimateData,omitempty"`

	PartOrderStatus string `bson:"partOrderStatus,omitempty" json:"partOrderStatus,omitempty"`
	StatusOrderPart string `bson:"statusOrderPart,omitempty" json:"statusOrderPart,omitempty"`

	IsClosed      bool       `bson:"isClosed" json:"isClosed"`
	ClosedAt      *time.Time `bson:"closedAt,omitempty" json:"closedAt,omitempty"`
	IsWoConfirmed bool       `bson:"isWoConfirmed" json:"isWoConfirmed"`

	FinanceDocs FinanceDocs `bson:"financeDocs" json:"financeDocs"`
	SATasks     SATasks     `bson:"saTasks" json:"saTasks"`

	History         []HistoryEntry     `bson:"history" json:"history"`
	FollowUpHistory []FollowUpEntry    `bson:"followUpHistory" json:"followUpHistory"`
	LogPekerjaan    []MechanicLog      `bson:"logPekerjaan" json:"logPekerjaan"`
	Photos          map[string][]Photo `bson:"photos,omitempty" json:"photos,omitempty"`

	// CRC follow-up task flags.
	BookingConfirmed       bool `bson:"bookingConfirmed" json:"bookingConfirmed"`
	CollectionNotified     bool `bson:"collectionNotified" json:"collectionNotified"`
	PartReadyNotified      bool `bson:"partReadyNotified" json:"partReadyNotified"`
	OutpatientFollowUpSent bool `bson:"outpatientFollowUpSent" json:"outpatientFollowUpSent"`

	SurveyCompleted bool        `bson:"surveyCompleted" json:"surveyCompleted"`
	SurveyScore     int         `bson:"surveyScore,omitempty" json:"surveyScore,omitempty"`
	SurveyData      *SurveyData `bson:"surveyData,omitempty" json:"surveyData,omitempty"`

	// Calendar dates, YYYY-MM-DD.
	TanggalMasuk           string `bson:"tanggalMasuk" json:"tanggalMasuk"`
	TanggalMulaiPerbaikan  string `bson:"tanggalMulaiPerbaikan,omitempty" json:"tanggalMulaiPerbaikan,omitempty"`
	TanggalEstimasiSelesai string `bson:"tanggalEstimasiSelesai,omitempty" json:"tanggalEstimasiSelesai,omitempty"`
	TanggalSelesai         string `bson:"tanggalSelesai,omitempty" json:"tanggalSelesai,omitempty"`
	TanggalDiambil         string `bson:"tanggalDiambil,omitempty" json:"tanggalDiambil,omitempty"`

	Keterangan    string    `bson:"keterangan,omitempty" json:"keterangan,omitempty"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
	LastUpdatedBy string    `bson:"lastUpdatedBy,omitempty" json:"lastUpdatedBy,omitempty"`
}

// CostData holds the recorded direct expenses of a job.
type CostData struct {
	HargaModalBahan float64 `bson:"hargaModalBahan" json:"hargaModalBahan"`
	HargaBeliPart   float64 `bson:"hargaBeliPart" json:"hargaBeliPart"`
	JasaExternal    float64 `bson:"jasaExternal" json:"jasaExternal"`
}

// Total is the sum of all expense buckets.
func (c CostData) Total() float64 {
	return c.HargaModalBahan + c.HargaBeliPart + c.JasaExternal
}

// Revenue is post-discount jasa plus part revenue.
func (j *Job) Revenue() float64 {
	return j.HargaJasa + j.HargaPart
}

// IsSelfPay reports whether the job is billed to the owner instead of an insurer.
func (j *Job) IsSelfPay() bool {
	return j.NamaAsuransi == InsurerSelfPay
}

// PartItems returns the estimate's part lines, or nil when no estimate exists.
func (j *Job) PartItems() []PartItem {
	if j.EstimateData == nil {
		return nil
	}
	return j.EstimateData.PartItems
}

// EstimateData is the saved estimate with its computed totals.
type EstimateData struct {
	JasaItems    []JasaItem `bson:"jasaItems" json:"jasaItems"`
	PartItems    []PartItem `bson:"partItems" json:"partItems"`
	DiscountJasa float64    `bson:"discountJasa" json:"discountJasa"`
	DiscountPart float64    `bson:"discountPart" json:"discountPart"`
	Totals       `bson:",inline"`
}

// JasaItem is a labor line.
type JasaItem struct {
	Name  string  `bson:"name" json:"name" validate:"required"`
	Price float64 `bson:"price" json:"price" validate:"gte=0"`
}

// PartItem is a spare part line. IsOrdered and HargaBeliAktual are maintained
// by the Partman.
type PartItem struct {
	Name            string  `bson:"name" json:"name" validate:"required"`
	Number          string  `bson:"number" json:"number"`
	Qty             float64 `bson:"qty" json:"qty" validate:"gt=0"`
	Price           float64 `bson:"price" json:"price" validate:"gte=0"`
	IsOrdered       bool    `bson:"isOrdered" json:"isOrdered"`
	HargaBeliAktual float64 `bson:"hargaBeliAktual,omitempty" json:"hargaBeliAktual,omitempty"`
}

// Totals is the Estimate Engine output.
type Totals struct {
	SubtotalJasa       float64 `bson:"subtotalJasa" json:"subtotalJasa"`
	SubtotalPart       float64 `bson:"subtotalPart" json:"subtotalPart"`
	DiscountJasaAmount float64 `bson:"discountJasaAmount" json:"discountJasaAmount"`
	DiscountPartAmount float64 `bson:"discountPartAmount" json:"discountPartAmount"`
	TotalAfterDiscount float64 `bson:"totalAfterDiscount" json:"totalAfterDiscount"`
	PpnAmount          float64 `bson:"ppnAmount" json:"ppnAmount"`
	GrandTotal         float64 `bson:"grandTotal" json:"grandTotal"`
}

// FinanceDocs is the billing document checklist required to close an insured job.
type FinanceDocs struct {
	HasSpkAsuransi   bool `bson:"hasSpkAsuransi" json:"hasSpkAsuransi"`
	HasWoEstimasi    bool `bson:"hasWoEstimasi" json:"hasWoEstimasi"`
	HasApprovalBiaya bool `bson:"hasApprovalBiaya" json:"hasApprovalBiaya"`
	HasFotoPeneng    bool `bson:"hasFotoPeneng" json:"hasFotoPeneng"`
	HasFotoEpoxy     bool `bson:"hasFotoEpoxy" json:"hasFotoEpoxy"`
	HasGesekRangka   bool `bson:"hasGesekRangka" json:"hasGesekRangka"`
	HasFotoSelesai   bool `bson:"hasFotoSelesai" json:"hasFotoSelesai"`
	HasInvoice       bool `bson:"hasInvoice" json:"hasInvoice"`
	HasFakturPajak   bool `bson:"hasFakturPajak" json:"hasFakturPajak"`
}

// Complete reports whether all nine documents are present.
func (d FinanceDocs) Complete() bool {
	return len(d.Missing()) == 0
}

// Missing lists the field names of absent documents.
func (d FinanceDocs) Missing() []string {
	var missing []string
	for _, f := range []struct {
		name string
		ok   bool
	}{
		{"hasSpkAsuransi", d.HasSpkAsuransi},
		{"hasWoEstimasi", d.HasWoEstimasi},
		{"hasApprovalBiaya", d.HasApprovalBiaya},
		{"hasFotoPeneng", d.HasFotoPeneng},
		{"hasFotoEpoxy", d.HasFotoEpoxy},
		{"hasGesekRangka", d.HasGesekRangka},
		{"hasFotoSelesai", d.HasFotoSelesai},
		{"hasInvoice", d.HasInvoice},
		{"hasFakturPajak", d.HasFakturPajak},
	} {
		if !f.ok {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// SATasks are the Service Advisor's critical-path blockers.
type SATasks struct {
	NeedsSpkAppeal        bool `bson:"needsSpkAppeal" json:"needsSpkAppeal"`
	SpkAppealDone         bool `bson:"spkAppealDone" json:"spkAppealDone"`
	NeedsSupplement       bool `bson:"needsSupplement" json:"needsSupplement"`
	SupplementDone        bool `bson:"supplementDone" json:"supplementDone"`
	NeedsEstimation       bool `bson:"needsEstimation" json:"needsEstimation"`
	EstimationDone        bool `bson:"estimationDone" json:"estimationDone"`
	NeedsCustomerApproval bool `bson:"needsCustomerApproval" json:"needsCustomerApproval"`
	CustomerApprovalDone  bool `bson:"customerApprovalDone" json:"customerApprovalDone"`
}

// Pending returns the names of tasks that are needed but not done.
func (t SATasks) Pending() []string {
	var pending []string
	if t.NeedsSpkAppeal && !t.SpkAppealDone {
		pending = append(pending, "spkAppeal")
	}
	if t.NeedsSupplement && !t.SupplementDone {
		pending = append(pending, "supplement")
	}
	if t.NeedsEstimation && !t.EstimationDone {
		pending = append(pending, "estimation")
	}
	if t.NeedsCustomerApproval && !t.CustomerApprovalDone {
		pending = append(pending, "customerApproval")
	}
	return pending
}

// HistoryEntry is one append-only status log line.
type HistoryEntry struct {
	Status    string    `bson:"status" json:"status"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	UpdatedBy string    `bson:"updatedBy" json:"updatedBy"`
	IsRework  bool      `bson:"isRework" json:"isRework"`
}

// FollowUpEntry logs a CRC contact with the customer.
type FollowUpEntry struct {
	Type      string    `bson:"type" json:"type"`
	Message   string    `bson:"message" json:"message"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	SentBy    string    `bson:"sentBy" json:"sentBy"`
}

// MechanicLog is a mechanic's work log line.
type MechanicLog struct {
	ID               string    `bson:"id" json:"id"`
	NamaMekanik      string    `bson:"namaMekanik" json:"namaMekanik"`
	TahapanPekerjaan string    `bson:"tahapanPekerjaan" json:"tahapanPekerjaan"`
	JumlahPanel      float64   `bson:"jumlahPanel" json:"jumlahPanel"`
	IsRework         bool      `bson:"isRework" json:"isRework"`
	AlasanRework     string    `bson:"alasanRework,omitempty" json:"alasanRework,omitempty"`
	Catatan          string    `bson:"catatan,omitempty" json:"catatan,omitempty"`
	TanggalLog       time.Time `bson:"tanggalLog" json:"tanggalLog"`
	DicatatOleh      string    `bson:"dicatatOleh" json:"dicatatOleh"`
}

// Photo is metadata for a blob stored in the photo bucket.
type Photo struct {
	ID         string    `bson:"id" json:"id"`
	URL        string    `bson:"url" json:"url"`
	Size       int64     `bson:"size" json:"size"`
	Keterangan string    `bson:"keterangan,omitempty" json:"keterangan,omitempty"`
	UploadedAt time.Time `bson:"uploadedAt" json:"uploadedAt"`
	UploadedBy string    `bson:"uploadedBy" json:"uploadedBy"`
}

// SurveyData is the after-service satisfaction survey.
type SurveyData struct {
	SurveyTaker string         `bson:"surveyTaker" json:"surveyTaker"`
	Timestamp   time.Time      `bson:"timestamp" json:"timestamp"`
	Score       int            `bson:"score" json:"score"`
	Results     []SurveyAnswer `bson:"results" json:"results"`
}

// SurveyAnswer is one question/answer pair.
type SurveyAnswer struct {
	Question string `bson:"question" json:"question"`
	Answer   string `bson:"answer" json:"answer"`
}

// NormalizePoliceNumber uppercases a plate and strips all whitespace.
func NormalizePoliceNumber(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, s)
}

// DateLayout is the layout of every calendar-date field on a job.
const DateLayout = "2006-01-02"

// FormatDate renders t as a job calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
