package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/inventory"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// seedItem is a master item plus its opening purchase.
type seedItem struct {
	item     models.InventoryItem
	purchase inventory.StockInInput
}

var seedItems = []seedItem{
	{
		item:     models.InventoryItem{Tipe: models.ItemBahan, NamaBahan: "Dempul Sikkens", KodeBahan: "BHN-DEMPUL-01", Satuan: models.UnitGram, MinStok: 2000},
		purchase: inventory.StockInInput{Qty: 10000, TotalPrice: 850000},
	},
	{
		item:     models.InventoryItem{Tipe: models.ItemBahan, NamaBahan: "Thinner PU", KodeBahan: "BHN-THINNER-01", Satuan: models.UnitLiter, MinStok: 5},
		purchase: inventory.StockInInput{Qty: 20, TotalPrice: 1300000, Density: 0.87},
	},
	{
		item:     models.InventoryItem{Tipe: models.ItemBahan, NamaBahan: "Amplas P800", KodeBahan: "BHN-AMPLAS-800", Satuan: models.UnitPcs, MinStok: 50},
		purchase: inventory.StockInInput{Qty: 2, TotalPrice: 480000, ItemsPerBox: 100},
	},
	{
		item:     models.InventoryItem{Tipe: models.ItemBahan, NamaBahan: "Clear Coat 2K", KodeBahan: "BHN-CLEAR-2K", Satuan: models.UnitKaleng, MinStok: 3},
		purchase: inventory.StockInInput{Qty: 6, TotalPrice: 2700000},
	},
	{
		item:     models.InventoryItem{Tipe: models.ItemPart, NamaBahan: "Klip bumper", KodeBahan: "B092-50-EA1", Satuan: models.UnitPcs, MinStok: 20, HargaJual: 12500},
		purchase: inventory.StockInInput{Qty: 50, TotalPrice: 400000},
	},
}

func newSeedCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create paint shop materials and stock them",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.connect(cmd)
			if err != nil {
				return err
			}
			return seed(cmd.Context(), c, seedItems)
		},
	}
}

// seed creates each item and books its opening purchase. Items whose code
// already exists are skipped.
func seed(ctx context.Context, c *apiClient, items []seedItem) error {
	created := 0
	for _, s := range items {
		var item models.InventoryItem
		err := c.do(ctx, http.MethodPost, "/api/inventory", s.item, &item)
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
			log.WithField("code", s.item.KodeBahan).Info("Item exists, skipping")
			continue
		}
		if err != nil {
			return fmt.Errorf("create %s: %w", s.item.KodeBahan, err)
		}

		var res struct {
			Item   models.InventoryItem    `json:"item"`
			Result inventory.StockInResult `json:"result"`
		}
		if err := c.do(ctx, http.MethodPost, "/api/inventory/"+item.ID.Hex()+"/stock-in", s.purchase, &res); err != nil {
			return fmt.Errorf("stock in %s: %w", s.item.KodeBahan, err)
		}
		created++
		log.WithFields(log.Fields{
			"code":      item.KodeBahan,
			"stock":     res.Item.Stok,
			"unit":      res.Item.Satuan,
			"unit_cost": res.Result.NewUnitCost,
		}).Info("Item seeded")
	}
	log.WithField("created", created).Info("Seeding finished")
	return nil
}
