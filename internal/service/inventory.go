package service

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/db"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/events"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/inventory"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// InventoryService manages the parts and materials master, stock-in and suppliers.
type InventoryService struct {
	items     db.InventoryCollection
	suppliers db.SupplierCollection
	events    events.Publisher
	logger    *log.Entry
	now       func() time.Time
}

func NewInventoryService(items db.InventoryCollection, suppliers db.SupplierCollection, pub events.Publisher) *InventoryService {
	return &InventoryService{
		items:     items,
		suppliers: suppliers,
		events:    pub,
		logger:    log.WithField("component", "inventory"),
		now:       time.Now,
	}
}

func requireInventory(actor models.Actor) error {
	if !actor.Can(models.PermManageInventory) {
		return errs.Forbidden("role %q is not allowed to manage inventory", actor.Role)
	}
	return nil
}

func itemErr(err error, id string) error {
	if errors.Is(err, db.ErrDuplicateCode) {
		return errs.Conflict("item code is already used")
	}
	return storeErr(err, "item", id)
}

// CreateItem adds a master record. kodeBahan is unique and uppercase.
func (s *InventoryService) CreateItem(ctx context.Context, actor models.Actor, item models.InventoryItem) (out *models.InventoryItem, err error) {
	fields := log.Fields{"actor": actor.Name(), "kode": item.KodeBahan}
	defer func() { logResult(s.logger, "create_item", fields, err) }()

	if err = requireInventory(actor); err != nil {
		return nil, err
	}
	if err = inventory.NormalizeItem(&item); err != nil {
		return nil, err
	}
	now := s.now()
	item.ID = primitive.NilObjectID
	item.CreatedAt, item.UpdatedAt = now, now
	if err = s.items.InsertItem(ctx, &item); err != nil {
		return nil, itemErr(err, item.KodeBahan)
	}
	s.events.Publish(events.New(events.InventoryUpdated, item.ID.Hex(), actor.Name(), item))
	return &item, nil
}

// UpdateItem edits master data. Stock only moves through stock-in and
// material assignment, so the write never touches the stored quantity.
func (s *InventoryService) UpdateItem(ctx context.Context, actor models.Actor, id string, item models.InventoryItem) (out *models.InventoryItem, err error) {
	fields := log.Fields{"actor": actor.Name(), "item_id": id}
	defer func() { logResult(s.logger, "update_item", fields, err) }()

	if err = requireInventory(actor); err != nil {
		return nil, err
	}
	current, err := s.items.FindItemByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "item", id)
	}
	if err = inventory.NormalizeItem(&item); err != nil {
		return nil, err
	}
	item.ID = current.ID
	item.Stok = current.Stok
	item.CreatedAt = current.CreatedAt
	item.UpdatedAt = s.now()
	if err = s.items.ApplyPatch(ctx, id, inventory.MasterDataPatch(item, item.UpdatedAt)); err != nil {
		return nil, itemErr(err, id)
	}
	s.events.Publish(events.New(events.InventoryUpdated, id, actor.Name(), item))
	return &item, nil
}

func (s *InventoryService) GetItem(ctx context.Context, id string) (*models.InventoryItem, error) {
	item, err := s.items.FindItemByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "item", id)
	}
	return item, nil
}

func (s *InventoryService) ListItems(ctx context.Context, filter db.ItemFilter) ([]models.InventoryItem, error) {
	items, err := s.items.FindItems(ctx, filter)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "list inventory")
	}
	return items, nil
}

// StockIn books a purchase: stock grows by the converted quantity and the
// unit cost becomes the purchase price per base unit.
func (s *InventoryService) StockIn(ctx context.Context, actor models.Actor, id string, in inventory.StockInInput) (out *models.InventoryItem, res inventory.StockInResult, err error) {
	fields := log.Fields{"actor": actor.Name(), "item_id": id, "qty": in.Qty}
	defer func() { logResult(s.logger, "stock_in", fields, err) }()

	if err = requireInventory(actor); err != nil {
		return nil, res, err
	}
	item, err := s.items.FindItemByID(ctx, id)
	if err != nil {
		return nil, res, storeErr(err, "item", id)
	}
	res, err = inventory.StockIn(*item, in)
	if err != nil {
		return nil, res, err
	}
	now := s.now()
	if err = s.items.ApplyPatch(ctx, id, inventory.StockInPatch(*item, in, res, now)); err != nil {
		return nil, res, storeErr(err, "item", id)
	}
	item.Stok += res.DeltaStock
	item.HargaModal = res.NewUnitCost
	item.UpdatedAt = now
	fields["delta"] = res.DeltaStock
	s.events.Publish(events.New(events.InventoryUpdated, id, actor.Name(), item))
	return item, res, nil
}

// LowStock lists items at or below their reorder threshold.
func (s *InventoryService) LowStock(ctx context.Context) ([]models.InventoryItem, error) {
	return s.ListItems(ctx, db.ItemFilter{LowStockOnly: true})
}

func normalizeSupplier(sup *models.Supplier) error {
	sup.Name = strings.TrimSpace(sup.Name)
	sup.Phone = strings.TrimSpace(sup.Phone)
	if sup.Name == "" {
		return errs.Validation("supplier name is required")
	}
	return nil
}

func (s *InventoryService) CreateSupplier(ctx context.Context, actor models.Actor, sup models.Supplier) (*models.Supplier, error) {
	if err := requireInventory(actor); err != nil {
		return nil, err
	}
	if err := normalizeSupplier(&sup); err != nil {
		return nil, err
	}
	sup.ID = primitive.NilObjectID
	if err := s.suppliers.InsertSupplier(ctx, &sup); err != nil {
		return nil, storeErr(err, "supplier", sup.Name)
	}
	s.logger.WithFields(log.Fields{"op": "create_supplier", "supplier_id": sup.ID.Hex()}).Info("ok")
	s.events.Publish(events.New(events.SupplierUpdated, sup.ID.Hex(), actor.Name(), sup))
	return &sup, nil
}

func (s *InventoryService) UpdateSupplier(ctx context.Context, actor models.Actor, id string, sup models.Supplier) error {
	if err := requireInventory(actor); err != nil {
		return err
	}
	if err := normalizeSupplier(&sup); err != nil {
		return err
	}
	if err := s.suppliers.UpdateSupplier(ctx, id, sup); err != nil {
		return storeErr(err, "supplier", id)
	}
	s.events.Publish(events.New(events.SupplierUpdated, id, actor.Name(), sup))
	return nil
}

func (s *InventoryService) DeleteSupplier(ctx context.Context, actor models.Actor, id string) error {
	if err := requireInventory(actor); err != nil {
		return err
	}
	if err := s.suppliers.DeleteSupplier(ctx, id); err != nil {
		return storeErr(err, "supplier", id)
	}
	s.events.Publish(events.New(events.SupplierUpdated, id, actor.Name(), nil))
	return nil
}

func (s *InventoryService) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	out, err := s.suppliers.FindSuppliers(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "list suppliers")
	}
	return out, nil
}
