package models

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson"
)

// Patch is a set of field operations applied to one document in a single
// atomic update. Paths are dotted document paths such as "costData.hargaBeliPart".
//
// Set carries snapshot values; Inc carries deltas that the store applies
// atomically on top of whatever is persisted at write time. Where holds
// conditions the stored document must still meet for the patch to apply.
type Patch struct {
	Set   map[string]interface{}
	Inc   map[string]float64
	Push  map[string][]interface{}
	Pull  map[string]interface{}
	Unset []string
	Where map[string]interface{}
}

// NewPatch returns an empty patch.
func NewPatch() *Patch {
	return &Patch{
		Set:   map[string]interface{}{},
		Inc:   map[string]float64{},
		Push:  map[string][]interface{}{},
		Pull:  map[string]interface{}{},
		Where: map[string]interface{}{},
	}
}

// SetField records a $set.
func (p *Patch) SetField(path string, value interface{}) *Patch {
	p.Set[path] = value
	return p
}

// IncField records an $inc; repeated calls on the same path accumulate.
func (p *Patch) IncField(path string, delta float64) *Patch {
	p.Inc[path] += delta
	return p
}

// PushField records values appended to an array field.
func (p *Patch) PushField(path string, values ...interface{}) *Patch {
	p.Push[path] = append(p.Push[path], values...)
	return p
}

// PullField removes array elements matching cond.
func (p *Patch) PullField(path string, cond interface{}) *Patch {
	p.Pull[path] = cond
	return p
}

// UnsetField records an $unset.
func (p *Patch) UnsetField(path string) *Patch {
	p.Unset = append(p.Unset, path)
	return p
}

// Expect adds a write-time condition on path. cond is a value or an operator
// document such as bson.M{"$ne": true}.
func (p *Patch) Expect(path string, cond interface{}) *Patch {
	if p.Where == nil {
		p.Where = map[string]interface{}{}
	}
	p.Where[path] = cond
	return p
}

// ExpectNot requires path to differ from value, or to be absent.
func (p *Patch) ExpectNot(path string, value interface{}) *Patch {
	return p.Expect(path, bson.M{"$ne": value})
}

// ExpectEmpty requires path to be absent, null or the empty string.
func (p *Patch) ExpectEmpty(path string) *Patch {
	return p.Expect(path, bson.M{"$in": bson.A{nil, ""}})
}

// IsConditional reports whether the patch carries write-time conditions.
func (p *Patch) IsConditional() bool {
	return p != nil && len(p.Where) > 0
}

// Filter returns base extended with the patch conditions.
func (p *Patch) Filter(base bson.M) bson.M {
	filter := bson.M{}
	for k, v := range base {
		filter[k] = v
	}
	if p == nil {
		return filter
	}
	for k, v := range p.Where {
		filter[k] = v
	}
	return filter
}

// Merge folds other into p.
func (p *Patch) Merge(other *Patch) *Patch {
	if other == nil {
		return p
	}
	for k, v := range other.Set {
		p.Set[k] = v
	}
	for k, v := range other.Inc {
		p.Inc[k] += v
	}
	for k, v := range other.Push {
		p.Push[k] = append(p.Push[k], v...)
	}
	for k, v := range other.Pull {
		p.Pull[k] = v
	}
	p.Unset = append(p.Unset, other.Unset...)
	for k, v := range other.Where {
		p.Expect(k, v)
	}
	return p
}

// IsEmpty reports whether the patch changes nothing.
func (p *Patch) IsEmpty() bool {
	return p == nil || (len(p.Set) == 0 && len(p.Inc) == 0 && len(p.Push) == 0 &&
		len(p.Pull) == 0 && len(p.Unset) == 0)
}

// Document renders the patch as a MongoDB update document.
func (p *Patch) Document() bson.M {
	update := bson.M{}
	if len(p.Set) > 0 {
		set := bson.M{}
		for k, v := range p.Set {
			set[k] = v
		}
		update["$set"] = set
	}
	if len(p.Inc) > 0 {
		inc := bson.M{}
		for k, v := range p.Inc {
			inc[k] = v
		}
		update["$inc"] = inc
	}
	if len(p.Push) > 0 {
		push := bson.M{}
		for k, v := range p.Push {
			push[k] = bson.M{"$each": v}
		}
		update["$push"] = push
	}
	if len(p.Pull) > 0 {
		pull := bson.M{}
		for k, v := range p.Pull {
			pull[k] = v
		}
		update["$pull"] = pull
	}
	if len(p.Unset) > 0 {
		unset := bson.M{}
		for _, k := range p.Unset {
			unset[k] = ""
		}
		update["$unset"] = unset
	}
	return update
}

// Paths lists every path the patch touches, sorted.
func (p *Patch) Paths() []string {
	seen := map[string]bool{}
	for k := range p.Set {
		seen[k] = true
	}
	for k := range p.Inc {
		seen[k] = true
	}
	for k := range p.Push {
		seen[k] = true
	}
	for k := range p.Pull {
		seen[k] = true
	}
	for _, k := range p.Unset {
		seen[k] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
