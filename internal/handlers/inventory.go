package handlers

import (
	"context"
	"net/http"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/db"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/inventory"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/service"
)

// InventoryService is the master data API the handlers drive.
type InventoryService interface {
	CreateItem(ctx context.Context, actor models.Actor, item models.InventoryItem) (*models.InventoryItem, error)
	UpdateItem(ctx context.Context, actor models.Actor, id string, item models.InventoryItem) (*models.InventoryItem, error)
	GetItem(ctx context.Context, id string) (*models.InventoryItem, error)
	ListItems(ctx context.Context, filter db.ItemFilter) ([]models.InventoryItem, error)
	LowStock(ctx context.Context) ([]models.InventoryItem, error)
	StockIn(ctx context.Context, actor models.Actor, id string, in inventory.StockInInput) (*models.InventoryItem, inventory.StockInResult, error)
	CreateSupplier(ctx context.Context, actor models.Actor, s models.Supplier) (*models.Supplier, error)
	UpdateSupplier(ctx context.Context, actor models.Actor, id string, s models.Supplier) error
	DeleteSupplier(ctx context.Context, actor models.Actor, id string) error
	ListSuppliers(ctx context.Context) ([]models.Supplier, error)
}

// StockOuter assigns an item to the open job of a vehicle.
type StockOuter interface {
	StockOutToJob(ctx context.Context, actor models.Actor, itemID string, qty float64, plate string) (service.MaterialsResult, error)
}

// InventoryHandler serves /api/inventory and /api/suppliers.
type InventoryHandler struct {
	inventory InventoryService
	stockOut  StockOuter
}

func NewInventoryHandler(inv InventoryService, stockOut StockOuter) *InventoryHandler {
	return &InventoryHandler{inventory: inv, stockOut: stockOut}
}

func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tipe := models.ItemType(q.Get("tipe"))
	if tipe != "" && tipe != models.ItemPart && tipe != models.ItemBahan {
		writeError(w, r, errs.Validation("tipe must be part or bahan"))
		return
	}
	items, err := h.inventory.ListItems(r.Context(), db.ItemFilter{
		Tipe:         tipe,
		Search:       q.Get("q"),
		LowStockOnly: q.Get("lowStock") == "true",
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *InventoryHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.LowStock(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.inventory.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var item models.InventoryItem
	if err := decode(r, &item); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.inventory.CreateItem(r.Context(), a, item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var item models.InventoryItem
	if err := decode(r, &item); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.inventory.UpdateItem(r.Context(), a, r.PathValue("id"), item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type stockInResponse struct {
	Item   *models.InventoryItem   `json:"item"`
	Result inventory.StockInResult `json:"result"`
}

func (h *InventoryHandler) StockIn(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in inventory.StockInInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	item, res, err := h.inventory.StockIn(r.Context(), a, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stockInResponse{Item: item, Result: res})
}

type stockOutRequest struct {
	Qty          float64 `json:"qty" validate:"gt=0"`
	PoliceNumber string  `json:"policeNumber" validate:"required"`
}

// StockOut draws qty of the item for the open job of a vehicle.
func (h *InventoryHandler) StockOut(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req stockOutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.stockOut.StockOutToJob(r.Context(), a, r.PathValue("id"), req.Qty, req.PoliceNumber)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *InventoryHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	out, err := h.inventory.ListSuppliers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *InventoryHandler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var s models.Supplier
	if err := decode(r, &s); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.inventory.CreateSupplier(r.Context(), a, s)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *InventoryHandler) UpdateSupplier(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var s models.Supplier
	if err := decode(r, &s); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.inventory.UpdateSupplier(r.Context(), a, r.PathValue("id"), s); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Supplier updated"})
}

func (h *InventoryHandler) DeleteSupplier(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.inventory.DeleteSupplier(r.Context(), a, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
