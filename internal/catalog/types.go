// Package catalog holds the reference entities and the cached snapshot the
// reconciler matches against.
package catalog

import "time"

// Area is a sales area.
type Area struct {
	AreaCode string `json:"area_code"`
	AreaName string `json:"area_name"`
	Region   string `json:"region"`
}

// ASM is an area sales manager. Each ASM is responsible for exactly one area.
type ASM struct {
	Name     string `json:"name"`
	AreaCode string `json:"area_code"`
	AreaName string `json:"area_name"`
}

// Store is a retail outlet inside an area.
type Store struct {
	StoreID   string `json:"store_id"`
	StoreName string `json:"store_name"`
	AreaCode  string `json:"area_code"`
	City      string `json:"kota"`
}

// Product is a catalog SKU.
type Product struct {
	ProductName string `json:"product_name"`
	SKUCode     string `json:"sku_code"`
	Category    string `json:"category"`
}

// Reference is one full read of the reference backend, in source order.
type Reference struct {
	Areas    []Area
	ASMs     []ASM
	Stores   []Store
	Products []Product
}

// IntegrityIssue describes a referential or uniqueness problem found while
// building a snapshot. Issues are reported, not fatal.
type IntegrityIssue struct {
	Entity  string `json:"entity"`
	Name    string `json:"name"`
	Problem string `json:"problem"`
}

// Snapshot is an immutable view of the reference data. Lookup maps are keyed
// by exact name; the slices preserve source order for deterministic matching.
type Snapshot struct {
	Areas    []Area
	ASMs     []ASM
	Stores   []Store
	Products []Product

	areaByCode    map[string]Area
	asmByName     map[string]ASM
	storeByName   map[string]Store
	productByName map[string]Product
	storesByArea  map[string][]Store

	Issues    []IntegrityIssue
	FetchedAt time.Time
}

// NewSnapshot builds a snapshot from one reference read. The input slices are
// copied; callers may reuse them.
func NewSnapshot(ref *Reference, fetchedAt time.Time) *Snapshot {
	s := &Snapshot{
		Areas:         append([]Area(nil), ref.Areas...),
		ASMs:          append([]ASM(nil), ref.ASMs...),
		Stores:        append([]Store(nil), ref.Stores...),
		Products:      append([]Product(nil), ref.Products...),
		areaByCode:    make(map[string]Area, len(ref.Areas)),
		asmByName:     make(map[string]ASM, len(ref.ASMs)),
		storeByName:   make(map[string]Store, len(ref.Stores)),
		productByName: make(map[string]Product, len(ref.Products)),
		storesByArea:  make(map[string][]Store),
		FetchedAt:     fetchedAt,
	}

	for _, a := range s.Areas {
		s.areaByCode[a.AreaCode] = a
	}
	for _, m := range s.ASMs {
		if _, dup := s.asmByName[m.Name]; dup {
			s.Issues = append(s.Issues, IntegrityIssue{Entity: "asm", Name: m.Name, Problem: "duplicate name"})
			continue
		}
		s.asmByName[m.Name] = m
		if _, ok := s.areaByCode[m.AreaCode]; !ok {
			s.Issues = append(s.Issues, IntegrityIssue{Entity: "asm", Name: m.Name, Problem: "unknown area code " + m.AreaCode})
		}
	}
	for _, st := range s.Stores {
		if _, dup := s.storeByName[st.StoreName]; dup {
			s.Issues = append(s.Issues, IntegrityIssue{Entity: "store", Name: st.StoreName, Problem: "duplicate name"})
		} else {
			s.storeByName[st.StoreName] = st
		}
		s.storesByArea[st.AreaCode] = append(s.storesByArea[st.AreaCode], st)
		if _, ok := s.areaByCode[st.AreaCode]; !ok {
			s.Issues = append(s.Issues, IntegrityIssue{Entity: "store", Name: st.StoreName, Problem: "unknown area code " + st.AreaCode})
		}
	}
	for _, p := range s.Products {
		if _, dup := s.productByName[p.ProductName]; dup {
			s.Issues = append(s.Issues, IntegrityIssue{Entity: "product", Name: p.ProductName, Problem: "duplicate name"})
			continue
		}
		s.productByName[p.ProductName] = p
	}

	return s
}

// AreaByCode returns the area for a code.
func (s *Snapshot) AreaByCode(code string) (Area, bool) {
	a, ok := s.areaByCode[code]
	return a, ok
}

// ASMByName returns the ASM with the exact given name.
func (s *Snapshot) ASMByName(name string) (ASM, bool) {
	m, ok := s.asmByName[name]
	return m, ok
}

// StoreByName returns the store with the exact given name.
func (s *Snapshot) StoreByName(name string) (Store, bool) {
	st, ok := s.storeByName[name]
	return st, ok
}

// ProductByName returns the product with the exact given name.
func (s *Snapshot) ProductByName(name string) (Product, bool) {
	p, ok := s.productByName[name]
	return p, ok
}

// StoresInArea returns the stores for an area code, in source order.
func (s *Snapshot) StoresInArea(code string) []Store {
	return s.storesByArea[code]
}
