package resolver

import (
	"fmt"

	"github.com/codegraph/indexer/internal/store"
	"github.com/codegraph/indexer/internal/store/model"
)

// hierarchy records the extends/implements edges discovered in layer
// (i), keyed by symbol id, so layer (iv) can walk ancestors without
// re-scanning raw references. Structural references may be cyclic only
// through interfaces (spec §9); hierarchy itself does not forbid
// cycles, derivation does.
type hierarchy struct {
	extends    map[string][]string // class/trait id -> direct extends targets
	implements map[string][]string // class id -> direct implemented interfaces
}

func newHierarchy() *hierarchy {
	return &hierarchy{extends: make(map[string][]string), implements: make(map[string][]string)}
}

func (h *hierarchy) addExtends(from, to string)    { h.extends[from] = append(h.extends[from], to) }
func (h *hierarchy) addImplements(from, to string) { h.implements[from] = append(h.implements[from], to) }

// ancestors walks the transitive extends chain starting at id, halting
// at any class already visited (diamond/cycle safety, spec §9).
func (h *hierarchy) ancestors(id string) []string {
	seen := map[string]bool{id: true}
	var order []string
	queue := append([]string(nil), h.extends[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		order = append(order, next)
		queue = append(queue, h.extends[next]...)
	}
	return order
}

// interfaces returns every interface id transitively implemented by id,
// including those implemented by its extends ancestors.
func (h *hierarchy) interfaces(id string) []string {
	var out []string
	visit := append([]string{id}, h.ancestors(id)...)
	seen := make(map[string]bool)
	for _, v := range visit {
		for _, iface := range h.implements[v] {
			if !seen[iface] {
				seen[iface] = true
				out = append(out, iface)
			}
			for _, parentIface := range h.ancestors(iface) {
				if !seen[parentIface] {
					seen[parentIface] = true
					out = append(out, parentIface)
				}
			}
		}
	}
	return out
}

// deriveOverrides emits overrides (extends ancestor) and
// implements_method (implemented interface) edges for every method
// whose local name collides with a method on an ancestor/interface
// (spec §4.4). Must run after the structural hierarchy is fully known.
func (e *Engine) deriveOverrides(w *store.Writer, table *SymbolTable, h *hierarchy, stats *Stats) error {
	methodsByOwner := make(map[string]map[string]string) // owner class/trait id -> method short name -> method id
	for id, sym := range table.ByID {
		if sym.Kind != model.KindMethod {
			continue
		}
		owner := ownerOf(sym.QualifiedName)
		ownerID, ok := table.ByQN(sym.Language, owner)
		if !ok {
			continue
		}
		if methodsByOwner[ownerID] == nil {
			methodsByOwner[ownerID] = make(map[string]string)
		}
		methodsByOwner[ownerID][shortNameOf(sym.QualifiedName)] = id
	}

	var refs []model.Reference
	for ownerID, methods := range methodsByOwner {
		for name, methodID := range methods {
			for _, ancestorID := range h.ancestors(ownerID) {
				if ancestorMethodID, ok := methodsByOwner[ancestorID][name]; ok {
					refs = append(refs, model.Reference{SourceID: methodID, TargetID: ancestorMethodID, Kind: model.RefOverrides})
					stats.ResolvedByStrategy["overrides_derivation"]++
				}
			}
			for _, ifaceID := range h.interfaces(ownerID) {
				if ifaceMethodID, ok := methodsByOwner[ifaceID][name]; ok {
					refs = append(refs, model.Reference{SourceID: methodID, TargetID: ifaceMethodID, Kind: model.RefImplementsMethod})
					stats.ResolvedByStrategy["implements_method_derivation"]++
				}
			}
		}
	}
	if len(refs) == 0 {
		return nil
	}
	if err := w.PutReferences(refs); err != nil {
		return fmt.Errorf("stage derived edges: %w", err)
	}
	return nil
}
