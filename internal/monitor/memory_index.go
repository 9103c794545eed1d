package monitor

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/tidwall/btree"

	apperrors "twmarket/internal/errors"
	"twmarket/pkg/contracts/domain"
)

type entry struct {
	symbol string
	typ    domain.MonitorType
	value  float64
	id     string
}

func entryLess(a, b entry) bool {
	if a.symbol != b.symbol {
		return a.symbol < b.symbol
	}
	if a.typ != b.typ {
		return a.typ < b.typ
	}
	if a.value != b.value {
		return a.value < b.value
	}
	return a.id < b.id
}

// MemoryIndex is an in-process Index ordered by (symbol, direction,
// threshold). Categories share one tree since the id already carries them.
type MemoryIndex struct {
	mu      sync.Mutex
	tree    *btree.BTreeG[entry]
	records map[string]domain.Monitor
	symbols map[string]struct{}
}

// NewMemoryIndex creates an empty index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		tree:    btree.NewBTreeG(entryLess),
		records: make(map[string]domain.Monitor),
		symbols: make(map[string]struct{}),
	}
}

func (x *MemoryIndex) Add(_ context.Context, m *domain.Monitor) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if old, ok := x.records[m.ID]; ok {
		x.tree.Delete(entry{old.Symbol, old.Type, old.Value, old.ID})
	}
	x.records[m.ID] = *m
	x.tree.Set(entry{m.Symbol, m.Type, m.Value, m.ID})
	x.symbols[m.Symbol] = struct{}{}
	return nil
}

func (x *MemoryIndex) Remove(_ context.Context, m *domain.Monitor) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	_, removed := x.tree.Delete(entry{m.Symbol, m.Type, m.Value, m.ID})
	delete(x.records, m.ID)
	return removed, nil
}

func (x *MemoryIndex) Match(_ context.Context, symbol string, price float64) ([]*domain.Monitor, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	var out []*domain.Monitor
	collect := func(e entry) {
		if m, ok := x.records[e.id]; ok {
			out = append(out, &m)
		}
	}

	x.tree.Ascend(entry{symbol: symbol, typ: domain.MonitorPriceGreater, value: math.Inf(-1)}, func(e entry) bool {
		if e.symbol != symbol || e.typ != domain.MonitorPriceGreater || e.value > price {
			return false
		}
		collect(e)
		return true
	})
	x.tree.Ascend(entry{symbol: symbol, typ: domain.MonitorPriceLess, value: price}, func(e entry) bool {
		if e.symbol != symbol || e.typ != domain.MonitorPriceLess {
			return false
		}
		collect(e)
		return true
	})
	return out, nil
}

func (x *MemoryIndex) Get(_ context.Context, id string) (*domain.Monitor, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	m, ok := x.records[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("monitor " + id)
	}
	return &m, nil
}

func (x *MemoryIndex) Symbols(context.Context) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	out := make([]string, 0, len(x.symbols))
	for s := range x.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
