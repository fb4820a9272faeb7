package catalog

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"cardshop-bot/internal/model"

	"github.com/shopspring/decimal"
)

// Pair is a (type, subtype) grouping key.
type Pair struct {
	Type    string
	Subtype string
}

// TypePrice is a browseable type with its display price.
type TypePrice struct {
	Name  string
	Price decimal.Decimal
}

// LoadError reports a catalog source that could not be read. Fatal at
// startup, recoverable via an explicit reload.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading catalog %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Catalog is the in-memory catalog store: the full item list plus derived
// indices over available items. The backing text file is the source of
// truth; indices are rebuilt on load and patched incrementally on sale.
type Catalog struct {
	mu   sync.RWMutex
	path string

	items          []*model.Item
	codesByPair    map[Pair][]*model.Item
	subtypesByType map[string][]string
	maxPriceByType map[string]decimal.Decimal
}

// New creates a catalog bound to the given backing text file. Call Load
// before use.
func New(path string) *Catalog {
	return &Catalog{path: path}
}

// Load re-reads the backing file and rebuilds all indices. Previously sold
// codes are NOT re-applied here; see Reconcile.
func (c *Catalog) Load() error {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return &LoadError{Path: c.path, Err: err}
	}

	items := ParseItems(string(raw))

	ptrs := make([]*model.Item, len(items))
	for i := range items {
		ptrs[i] = &items[i]
	}

	codesByPair := make(map[Pair][]*model.Item)
	subtypeSets := make(map[string]map[string]bool)
	maxPrice := make(map[string]decimal.Decimal)

	for _, it := range ptrs {
		if it.Available {
			key := Pair{it.Type, it.Subtype}
			codesByPair[key] = append(codesByPair[key], it)
			if subtypeSets[it.Type] == nil {
				subtypeSets[it.Type] = make(map[string]bool)
			}
			subtypeSets[it.Type][it.Subtype] = true
		}
		// Price is tracked per type over ALL items, available or not, so a
		// type keeps its display price even after the priced item sells.
		if it.Price.IsPositive() {
			if cur, ok := maxPrice[it.Type]; !ok || it.Price.GreaterThan(cur) {
				maxPrice[it.Type] = it.Price
			}
		}
	}

	for key := range codesByPair {
		lst := codesByPair[key]
		sort.Slice(lst, func(i, j int) bool {
			if lst[i].Type != lst[j].Type {
				return lst[i].Type < lst[j].Type
			}
			if lst[i].Subtype != lst[j].Subtype {
				return lst[i].Subtype < lst[j].Subtype
			}
			return lst[i].Code < lst[j].Code
		})
	}

	subtypesByType := make(map[string][]string, len(subtypeSets))
	for t, set := range subtypeSets {
		subs := make([]string, 0, len(set))
		for s := range set {
			subs = append(subs, s)
		}
		sort.Strings(subs)
		subtypesByType[t] = subs
	}

	c.mu.Lock()
	c.items = ptrs
	c.codesByPair = codesByPair
	c.subtypesByType = subtypesByType
	c.maxPriceByType = maxPrice
	c.mu.Unlock()

	log.Printf("[Catalog] Loaded %d blocks, %d type/subtype pairs with availability", len(ptrs), len(codesByPair))
	return nil
}

// Reconcile re-applies the sold set after a load, so codes sold in a
// previous process lifetime stay unavailable even if the backing file was
// restored or edited to re-include them.
func (c *Catalog) Reconcile(soldCodes []string) {
	for _, code := range soldCodes {
		c.MarkSold(code)
	}
}

// TypesSorted returns the browseable types (those with at least one
// available item) in lexicographic order with their display price.
func (c *Catalog) TypesSorted() []TypePrice {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for key := range c.codesByPair {
		if !seen[key.Type] {
			seen[key.Type] = true
			names = append(names, key.Type)
		}
	}
	sort.Strings(names)

	out := make([]TypePrice, len(names))
	for i, name := range names {
		out[i] = TypePrice{Name: name, Price: c.maxPriceByType[name]}
	}
	return out
}

// Subtypes returns the subtypes of a type that still have available items.
func (c *Catalog) Subtypes(typeName string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	subs := c.subtypesByType[typeName]
	out := make([]string, len(subs))
	copy(out, subs)
	return out
}

// Codes returns the available items for a (type, subtype) pair, sorted by
// (type, subtype, code).
func (c *Catalog) Codes(typeName, subtype string) []model.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return snapshot(c.codesByPair[Pair{typeName, subtype}])
}

// TypePriceFor returns the display price recorded for a type, or zero.
func (c *Catalog) TypePriceFor(typeName string) decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.maxPriceByType[typeName]
}

// Find returns the first available item with the given code.
func (c *Catalog) Find(code string) (model.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, it := range c.items {
		if it.Code == code && it.Available {
			return *it, true
		}
	}
	return model.Item{}, false
}

// SearchPrefix returns all available items whose code starts with prefix,
// in deterministic pair order.
func (c *Catalog) SearchPrefix(prefix string) []model.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []model.Item
	for _, key := range c.sortedPairs() {
		for _, it := range c.codesByPair[key] {
			if strings.HasPrefix(it.Code, prefix) {
				out = append(out, *it)
			}
		}
	}
	return out
}

// SearchType returns available items whose type matches the query,
// case-insensitively. Exact matches win; substring matches are the
// fallback when no type matches exactly.
func (c *Catalog) SearchType(query string) []model.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))

	var out []model.Item
	for _, key := range c.sortedPairs() {
		if strings.ToLower(key.Type) == q {
			out = append(out, snapshot(c.codesByPair[key])...)
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, key := range c.sortedPairs() {
		if strings.Contains(strings.ToLower(key.Type), q) {
			out = append(out, snapshot(c.codesByPair[key])...)
		}
	}
	return out
}

// MarkSold marks the first available item with the given code as sold,
// repairs the derived indices and removes the item's block from the
// backing file. Returns false for unknown or already-sold codes.
//
// The file rewrite is best-effort: a write failure is logged and the
// in-memory mutation stands. Reconciliation on the next load restores
// consistency from the sold set, not from the backing file.
func (c *Catalog) MarkSold(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, it := range c.items {
		if it.Code != code || !it.Available {
			continue
		}
		it.Available = false

		key := Pair{it.Type, it.Subtype}
		bucket := c.codesByPair[key]
		kept := bucket[:0]
		for _, b := range bucket {
			if b.Code != code {
				kept = append(kept, b)
			}
		}
		if len(kept) > 0 {
			c.codesByPair[key] = kept
		} else {
			delete(c.codesByPair, key)
			c.dropSubtype(it.Type, it.Subtype)
		}

		if err := c.removeBlockFromFile(code); err != nil {
			log.Printf("[Catalog] Failed to remove code %s from %s: %v", code, c.path, err)
		}
		log.Printf("[Catalog] Code %s marked as sold", code)
		return true
	}
	return false
}

// dropSubtype removes a now-empty subtype from its type; when the type's
// last subtype goes, the type leaves the price map too so it disappears
// from browse menus entirely.
func (c *Catalog) dropSubtype(typeName, subtype string) {
	subs := c.subtypesByType[typeName]
	kept := subs[:0]
	for _, s := range subs {
		if s != subtype {
			kept = append(kept, s)
		}
	}
	if len(kept) > 0 {
		c.subtypesByType[typeName] = kept
		return
	}
	delete(c.subtypesByType, typeName)
	delete(c.maxPriceByType, typeName)
}

// removeBlockFromFile strips the lines belonging to a code's block from the
// backing file: from the "codigo> CODE" marker line through the following
// separator line. All other blocks keep their original bytes.
func (c *Catalog) removeBlockFromFile(code string) error {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}

	lines := strings.Split(string(raw), "\n")
	kept := make([]string, 0, len(lines))
	skipping := false
	removed := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "codigo> "+code):
			skipping = true
			removed = true
		case skipping && trimmed == blockSeparator:
			skipping = false
		case !skipping:
			kept = append(kept, line)
		}
	}

	if !removed {
		return nil
	}

	if err := os.WriteFile(c.path, []byte(strings.Join(kept, "\n")), 0o644); err != nil {
		return fmt.Errorf("rewriting catalog: %w", err)
	}
	return nil
}

// sortedPairs returns the index keys in (type, subtype) order. Callers must
// hold at least a read lock.
func (c *Catalog) sortedPairs() []Pair {
	pairs := make([]Pair, 0, len(c.codesByPair))
	for key := range c.codesByPair {
		pairs = append(pairs, key)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Type != pairs[j].Type {
			return pairs[i].Type < pairs[j].Type
		}
		return pairs[i].Subtype < pairs[j].Subtype
	})
	return pairs
}

func snapshot(items []*model.Item) []model.Item {
	out := make([]model.Item, len(items))
	for i, it := range items {
		out[i] = *it
	}
	return out
}
