package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/middleware"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// Routes holds everything the API mux dispatches to.
type Routes struct {
	Auth      *AuthHandler
	Jobs      *JobHandler
	Inventory *InventoryHandler
	Settings  *SettingsHandler
	KPI       *KPIHandler
	Stream    http.Handler

	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimitMiddleware
	RateLimit      int
	RateWindow     time.Duration

	// Health reports backing store reachability; nil means always healthy.
	Health func(ctx context.Context) error
}

// Handler builds the mux. Every route except login, register and /health
// passes through Authenticate; mutating routes also check a permission.
func (rt Routes) Handler() http.Handler {
	mux := http.NewServeMux()
	can := func(perm string, h http.HandlerFunc) http.Handler {
		return rt.AuthMiddleware.RequirePermission(perm)(h)
	}
	manager := func(h http.HandlerFunc) http.Handler {
		return rt.AuthMiddleware.RequireRole(models.RoleManager)(h)
	}

	mux.HandleFunc("GET /health", rt.health)

	mux.HandleFunc("POST /api/auth/login", rt.Auth.Login)
	mux.HandleFunc("POST /api/auth/register", rt.Auth.Register)
	mux.HandleFunc("GET /api/auth/profile", rt.Auth.GetProfile)
	mux.HandleFunc("PUT /api/auth/profile", rt.Auth.UpdateProfile)
	mux.HandleFunc("POST /api/auth/change-password", rt.Auth.ChangePassword)
	mux.Handle("GET /api/users", can(models.PermManageUsers, rt.Auth.ListUsers))
	mux.Handle("PUT /api/users/{id}", can(models.PermManageUsers, rt.Auth.UpdateUser))

	mux.HandleFunc("GET /api/settings", rt.Settings.Get)
	mux.Handle("PUT /api/settings", manager(rt.Settings.Save))

	j := rt.Jobs
	mux.Handle("GET /api/jobs", can(models.PermViewJobs, j.List))
	mux.Handle("POST /api/jobs", can(models.PermCreateJob, j.Create))
	mux.Handle("GET /api/jobs/lookup", can(models.PermViewJobs, j.Lookup))
	mux.Handle("GET /api/jobs/{id}", can(models.PermViewJobs, j.Get))
	mux.Handle("PATCH /api/jobs/{id}", can(models.PermEditJob, j.Update))
	mux.Handle("POST /api/jobs/{id}/transition", can(models.PermTransitionJob, j.Transition))
	mux.Handle("POST /api/jobs/{id}/rework", can(models.PermToggleRework, j.ActivateRework))
	mux.Handle("POST /api/jobs/{id}/rework/clear", can(models.PermToggleRework, j.ClearRework))
	mux.Handle("POST /api/jobs/{id}/estimate", can(models.PermSaveEstimate, j.SaveEstimate))
	mux.Handle("POST /api/jobs/{id}/costs", can(models.PermCloseCosts, j.CloseCosts))
	mux.Handle("POST /api/jobs/{id}/reopen", can(models.PermReopenWO, j.Reopen))
	mux.Handle("POST /api/jobs/{id}/parts/confirm", can(models.PermManageParts, j.ConfirmParts))
	mux.Handle("POST /api/jobs/{id}/parts/arrived", can(models.PermManageParts, j.PartsArrived))
	mux.Handle("POST /api/jobs/{id}/parts/indent", can(models.PermManageParts, j.PartsIndent))
	mux.Handle("POST /api/jobs/{id}/parts/on-order", can(models.PermManageParts, j.PartsOnOrder))
	mux.Handle("POST /api/jobs/{id}/parts/cancel", can(models.PermManageParts, j.CancelParts))
	mux.Handle("POST /api/jobs/{id}/materials", can(models.PermAssignMaterials, j.AssignMaterials))
	mux.Handle("POST /api/jobs/{id}/mechanic-logs", can(models.PermLogMechanic, j.AddMechanicLog))
	mux.Handle("POST /api/jobs/{id}/follow-ups", can(models.PermLogFollowUp, j.AddFollowUp))
	mux.Handle("POST /api/jobs/{id}/survey", can(models.PermRecordSurvey, j.RecordSurvey))
	mux.Handle("POST /api/jobs/{id}/sa-tasks/{task}", can(models.PermEditJob, j.CompleteSATask))
	mux.Handle("POST /api/jobs/{id}/photos", can(models.PermUploadPhoto, j.UploadPhoto))
	mux.Handle("DELETE /api/jobs/{id}/photos/{photoId}", can(models.PermUploadPhoto, j.DeletePhoto))
	mux.Handle("GET /api/photos/{fileId}", can(models.PermViewJobs, j.ServePhoto))

	inv := rt.Inventory
	mux.Handle("GET /api/inventory", can(models.PermViewInventory, inv.List))
	mux.Handle("POST /api/inventory", can(models.PermManageInventory, inv.Create))
	mux.Handle("GET /api/inventory/low-stock", can(models.PermViewInventory, inv.LowStock))
	mux.Handle("GET /api/inventory/{id}", can(models.PermViewInventory, inv.Get))
	mux.Handle("PUT /api/inventory/{id}", can(models.PermManageInventory, inv.Update))
	mux.Handle("POST /api/inventory/{id}/stock-in", can(models.PermManageInventory, inv.StockIn))
	mux.Handle("POST /api/inventory/{id}/stock-out", can(models.PermAssignMaterials, inv.StockOut))
	mux.Handle("GET /api/suppliers", can(models.PermViewInventory, inv.ListSuppliers))
	mux.Handle("POST /api/suppliers", can(models.PermManageInventory, inv.CreateSupplier))
	mux.Handle("PUT /api/suppliers/{id}", can(models.PermManageInventory, inv.UpdateSupplier))
	mux.Handle("DELETE /api/suppliers/{id}", can(models.PermManageInventory, inv.DeleteSupplier))

	k := rt.KPI
	mux.Handle("GET /api/kpi/gross-profit", can(models.PermViewKPI, k.GrossProfit))
	mux.Handle("GET /api/kpi/finance", can(models.PermViewKPI, k.Finance))
	mux.Handle("GET /api/kpi/production", can(models.PermViewKPI, k.Production))
	mux.Handle("GET /api/kpi/parts", can(models.PermViewKPI, k.Parts))
	mux.Handle("GET /api/kpi/crc", can(models.PermViewKPI, k.CRC))
	mux.Handle("GET /api/kpi/sa", can(models.PermViewKPI, k.SATasks))

	if rt.Stream != nil {
		mux.Handle("GET /api/stream", rt.Stream)
	}

	var h http.Handler = rt.AuthMiddleware.Authenticate(mux)
	if rt.RateLimiter != nil && rt.RateLimit > 0 {
		h = rt.RateLimiter.RateLimit(rt.RateLimit, rt.RateWindow)(h)
	}
	return h
}

func (rt Routes) health(w http.ResponseWriter, r *http.Request) {
	if rt.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.Health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
