package db

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// Job list states.
const (
	JobsOpen   = "open"
	JobsClosed = "closed"
	JobsAll    = "all"
)

// JobFilter narrows a job listing.
type JobFilter struct {
	Status  string // open, closed or all; empty means open
	Insurer string
	Stage   string
	SA      string
	Search  string // plate or WO number substring
	Limit   int64
}

// Query builds the Mongo filter document.
func (f JobFilter) Query() bson.M {
	q := bson.M{}
	switch f.Status {
	case JobsClosed:
		q["isClosed"] = true
	case JobsAll:
	default:
		q["isClosed"] = bson.M{"$ne": true}
	}
	if f.Insurer != "" {
		q["namaAsuransi"] = f.Insurer
	}
	if f.Stage != "" {
		q["statusPekerjaan"] = f.Stage
	}
	if f.SA != "" {
		q["namaSA"] = f.SA
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		plate := regexp.QuoteMeta(models.NormalizePoliceNumber(s))
		q["$or"] = bson.A{
			bson.M{"policeNumber": bson.M{"$regex": plate}},
			bson.M{"woNumber": bson.M{"$regex": regexp.QuoteMeta(strings.ToUpper(s))}},
		}
	}
	return q
}

// ItemFilter narrows an inventory listing.
type ItemFilter struct {
	Tipe         models.ItemType
	Search       string
	LowStockOnly bool
}

// Query builds the Mongo filter document.
func (f ItemFilter) Query() bson.M {
	q := bson.M{}
	if f.Tipe != "" {
		q["tipe"] = f.Tipe
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := regexp.QuoteMeta(s)
		q["$or"] = bson.A{
			bson.M{"namaBahan": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"kodeBahan": bson.M{"$regex": regexp.QuoteMeta(strings.ToUpper(s))}},
		}
	}
	if f.LowStockOnly {
		q["$expr"] = bson.M{"$lte": bson.A{"$stok", "$minStok"}}
	}
	return q
}

func bsonD(kv ...interface{}) bson.D {
	d := make(bson.D, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		d = append(d, bson.E{Key: kv[i].(string), Value: kv[i+1]})
	}
	return d
}
