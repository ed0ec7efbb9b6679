package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Unit is the stock-keeping unit of an inventory item.
type Unit string

const (
	UnitPcs      Unit = "Pcs"
	UnitGram     Unit = "Gram"
	UnitLiter    Unit = "Liter"
	UnitKaleng   Unit = "Kaleng"
	UnitKilogram Unit = "Kilogram"
	UnitBox      Unit = "Box"
)

// IsValidUnit checks if a unit is one of the supported units
func IsValidUnit(u Unit) bool {
	switch u {
	case UnitPcs, UnitGram, UnitLiter, UnitKaleng, UnitKilogram, UnitBox:
		return true
	default:
		return false
	}
}

// ItemType distinguishes spare parts from consumable materials.
type ItemType string

const (
	ItemPart  ItemType = "part"
	ItemBahan ItemType = "bahan"
)

// InventoryItem is one stock-keeping unit in bengkel-spareparts-master.
// Stok is kept in the item's base unit (grams for Kilogram and Liter items).
type InventoryItem struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Tipe       ItemType           `bson:"tipe" json:"tipe"`
	NamaBahan  string             `bson:"namaBahan" json:"namaBahan"`
	KodeBahan  string             `bson:"kodeBahan" json:"kodeBahan"`
	Satuan     Unit               `bson:"satuan" json:"satuan"`
	Stok       float64            `bson:"stok" json:"stok"`
	MinStok    float64            `bson:"minStok" json:"minStok"`
	HargaModal float64            `bson:"hargaModal" json:"hargaModal"`
	HargaJual  float64            `bson:"hargaJual,omitempty" json:"hargaJual,omitempty"`
	Supplier   string             `bson:"supplier,omitempty" json:"supplier,omitempty"`
	IsiPerBox  float64            `bson:"isiPerBox,omitempty" json:"isiPerBox,omitempty"`
	Densitas   float64            `bson:"densitas,omitempty" json:"densitas,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Supplier is a parts or materials vendor.
type Supplier struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Phone     string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address   string             `bson:"address,omitempty" json:"address,omitempty"`
	Contact   string             `bson:"contact,omitempty" json:"contact,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
