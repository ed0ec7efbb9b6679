package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/inventory"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/service"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/workflow"
)

var carModels = []string{"Mazda 2", "Mazda 3", "Mazda CX-3", "Mazda CX-5", "Mazda CX-30", "Mazda CX-8", "Mazda BT-50"}

var panels = []string{"Bumper depan", "Bumper belakang", "Pintu depan kanan", "Pintu depan kiri", "Fender kanan", "Fender kiri", "Kap mesin", "Bagasi"}

var parts = []models.PartItem{
	{Name: "Lampu kabut kanan", Number: "KD53-51-680", Price: 1450000},
	{Name: "Emblem depan", Number: "KD53-51-731", Price: 385000},
	{Name: "Klip bumper", Number: "B092-50-EA1", Price: 12500},
	{Name: "Spion kiri", Number: "KB8A-69-18Z", Price: 2750000},
}

type runOptions struct {
	jobs  int
	delay time.Duration
	seed  int64
}

func newRunCmd(g *globalOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Walk jobs from intake to a closed WO",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.connect(cmd)
			if err != nil {
				return err
			}
			if opts.seed == 0 {
				opts.seed = time.Now().UnixNano()
			}
			s := &scenario{api: c, rnd: rand.New(rand.NewSource(opts.seed)), delay: opts.delay}
			return s.runAll(cmd.Context(), opts.jobs)
		},
	}
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "n", 3, "number of jobs to simulate")
	cmd.Flags().DurationVar(&opts.delay, "delay", 0, "pause between workflow steps")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "random seed (0 picks one)")
	return cmd
}

// scenario drives one or more jobs through the workflow.
type scenario struct {
	api   *apiClient
	rnd   *rand.Rand
	delay time.Duration
	cfg   models.Settings
}

func (s *scenario) runAll(ctx context.Context, n int) error {
	if err := s.api.do(ctx, http.MethodGet, "/api/settings", nil, &s.cfg); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	closed := 0
	for i := 0; i < n; i++ {
		job, err := s.runJob(ctx)
		if err != nil {
			log.WithError(err).WithField("job", i+1).Error("Job simulation failed")
			continue
		}
		closed++
		log.WithFields(log.Fields{
			"wo_number":    job.WONumber,
			"plate":        job.PoliceNumber,
			"insurer":      job.NamaAsuransi,
			"gross_profit": job.GrossProfit,
		}).Info("Job closed")
	}
	log.WithFields(log.Fields{"requested": n, "closed": closed}).Info("Simulation finished")
	if closed == 0 && n > 0 {
		return fmt.Errorf("no job reached close")
	}
	return nil
}

func (s *scenario) pause(ctx context.Context) {
	if s.delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(s.delay):
	}
}

func (s *scenario) pick(opts []string, fallback string) string {
	if len(opts) == 0 {
		return fallback
	}
	return opts[s.rnd.Intn(len(opts))]
}

func (s *scenario) insurer() string {
	if len(s.cfg.InsuranceOptions) == 0 {
		return models.InsurerSelfPay
	}
	return s.cfg.InsuranceOptions[s.rnd.Intn(len(s.cfg.InsuranceOptions))].Name
}

// runJob returns the closed job.
func (s *scenario) runJob(ctx context.Context) (*models.Job, error) {
	var job models.Job
	intake := workflow.JobInput{
		PoliceNumber: fmt.Sprintf("B %d SIM", 1000+s.rnd.Intn(9000)),
		CustomerName: fmt.Sprintf("Pelanggan %d", s.rnd.Intn(1000)),
		CarModel:     s.pick(carModels, "Mazda CX-5"),
		NamaAsuransi: s.insurer(),
		NamaSA:       s.pick(s.cfg.ServiceAdvisors, ""),
		JumlahPanel:  1 + s.rnd.Intn(4),
	}
	if err := s.api.do(ctx, http.MethodPost, "/api/jobs", intake, &job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	id := job.ID.Hex()
	logger := log.WithFields(log.Fields{"job_id": id, "plate": job.PoliceNumber})
	logger.Info("Job created")
	s.pause(ctx)

	start := time.Now().Format(models.DateLayout)
	due := time.Now().AddDate(0, 0, 7).Format(models.DateLayout)
	if err := s.api.do(ctx, http.MethodPatch, "/api/jobs/"+id, workflow.DetailsInput{
		TanggalMulaiPerbaikan:  &start,
		TanggalEstimasiSelesai: &due,
	}, &job); err != nil {
		return nil, fmt.Errorf("schedule job: %w", err)
	}

	if err := s.api.do(ctx, http.MethodPost, "/api/jobs/"+id+"/estimate", s.estimate(intake.JumlahPanel), &job); err != nil {
		return nil, fmt.Errorf("finalize estimate: %w", err)
	}
	if job.EstimateData != nil {
		logger = logger.WithField("grand_total", job.EstimateData.GrandTotal)
	}
	logger.WithField("wo_number", job.WONumber).Info("WO confirmed")
	s.pause(ctx)

	if err := s.orderParts(ctx, id, &job); err != nil {
		return nil, err
	}
	if err := s.produce(ctx, id, &job); err != nil {
		return nil, err
	}
	s.useMaterials(ctx, id, &job)

	closeReq := service.CloseRequest{
		Costs: workflow.CostInput{
			HargaModalBahan: job.CostData.HargaModalBahan,
			HargaBeliPart:   job.CostData.HargaBeliPart,
			JasaExternal:    float64(s.rnd.Intn(3)) * 50000,
		},
		FinanceDocs: allDocs(),
		Close:       true,
	}
	if err := s.api.do(ctx, http.MethodPost, "/api/jobs/"+id+"/costs", closeReq, &job); err != nil {
		return nil, fmt.Errorf("close costs: %w", err)
	}
	return &job, nil
}

func (s *scenario) estimate(panelCount int) map[string]interface{} {
	jasa := make([]models.JasaItem, 0, panelCount)
	for i := 0; i < panelCount; i++ {
		jasa = append(jasa, models.JasaItem{
			Name:  panels[(i+s.rnd.Intn(len(panels)))%len(panels)],
			Price: float64(350000 + s.rnd.Intn(8)*50000),
		})
	}
	var partLines []models.PartItem
	for _, p := range parts {
		if s.rnd.Intn(2) == 0 {
			p.Qty = float64(1 + s.rnd.Intn(2))
			partLines = append(partLines, p)
		}
	}
	return map[string]interface{}{
		"jasaItems": jasa,
		"partItems": partLines,
		"finalize":  true,
	}
}

func (s *scenario) orderParts(ctx context.Context, id string, job *models.Job) error {
	items := job.PartItems()
	if len(items) == 0 {
		return nil
	}
	lines := make([]workflow.PartConfirmation, 0, len(items))
	for i, p := range items {
		// Dealer purchase price is roughly 70% of the customer price.
		lines = append(lines, workflow.PartConfirmation{Index: i, HargaBeliAktual: p.Price * 0.7})
	}
	if err := s.api.do(ctx, http.MethodPost, "/api/jobs/"+id+"/parts/confirm", map[string]interface{}{"lines": lines}, job); err != nil {
		return fmt.Errorf("confirm parts: %w", err)
	}
	s.pause(ctx)
	if err := s.api.do(ctx, http.MethodPost, "/api/jobs/"+id+"/parts/arrived", nil, job); err != nil {
		return fmt.Errorf("parts arrived: %w", err)
	}
	log.WithFields(log.Fields{"job_id": id, "parts": len(lines), "status": job.StatusOrderPart}).Info("Parts arrived")
	return nil
}

// produce walks every configured stage up to Selesai, logging mechanic work
// on the production stages.
func (s *scenario) produce(ctx context.Context, id string, job *models.Job) error {
	started := false
	for _, stage := range s.cfg.StatusPekerjaanOptions {
		if stage == job.StatusPekerjaan {
			started = true
			continue
		}
		if !started || stage == "Tunggu Part" {
			continue
		}
		if err := s.api.do(ctx, http.MethodPost, "/api/jobs/"+id+"/transition", map[string]string{"stage": stage}, job); err != nil {
			return fmt.Errorf("transition to %s: %w", stage, err)
		}
		if stage != models.StageDone && len(s.cfg.MechanicNames) > 0 {
			entry := workflow.MechanicLogInput{
				NamaMekanik:      s.pick(s.cfg.MechanicNames, ""),
				TahapanPekerjaan: stage,
				JumlahPanel:      float64(job.JumlahPanel),
			}
			if entry.JumlahPanel <= 0 {
				entry.JumlahPanel = 1
			}
			if err := s.api.do(ctx, http.MethodPost, "/api/jobs/"+id+"/mechanic-logs", entry, job); err != nil {
				return fmt.Errorf("mechanic log at %s: %w", stage, err)
			}
		}
		log.WithFields(log.Fields{"job_id": id, "stage": stage}).Debug("Stage reached")
		s.pause(ctx)
	}
	if job.StatusPekerjaan != models.StageDone {
		return fmt.Errorf("job stopped at %q", job.StatusPekerjaan)
	}
	return nil
}

// useMaterials charges a little of a stocked material. Failures are logged
// only; an empty store is normal before seeding.
func (s *scenario) useMaterials(ctx context.Context, id string, job *models.Job) {
	var items []models.InventoryItem
	if err := s.api.do(ctx, http.MethodGet, "/api/inventory?tipe=bahan", nil, &items); err != nil {
		log.WithError(err).Warn("Could not list materials")
		return
	}
	for _, it := range items {
		qty := 100.0
		if it.Satuan == models.UnitPcs || it.Satuan == models.UnitKaleng {
			qty = 1
		}
		if it.Stok < qty {
			continue
		}
		var res service.MaterialsResult
		lines := []inventory.MaterialLine{{ItemID: it.ID.Hex(), Qty: qty}}
		if err := s.api.do(ctx, http.MethodPost, "/api/jobs/"+id+"/materials", map[string]interface{}{"lines": lines}, &res); err != nil {
			log.WithError(err).WithField("item", it.NamaBahan).Warn("Material assignment failed")
			return
		}
		*job = *res.Job
		log.WithFields(log.Fields{"job_id": id, "item": it.NamaBahan, "qty": qty, "charged": res.Total}).Info("Materials charged")
		return
	}
}

func allDocs() models.FinanceDocs {
	return models.FinanceDocs{
		HasSpkAsuransi:   true,
		HasWoEstimasi:    true,
		HasApprovalBiaya: true,
		HasFotoPeneng:    true,
		HasFotoEpoxy:     true,
		HasGesekRangka:   true,
		HasFotoSelesai:   true,
		HasInvoice:       true,
		HasFakturPajak:   true,
	}
}
