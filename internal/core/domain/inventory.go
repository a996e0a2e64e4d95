package domain

// InventoryEntry names one managed resource. Group kinds carry their member
// names (functions or alarms).
type InventoryEntry struct {
	Kind       ResourceKind
	Identifier string
	Members    []string
	// Attributes holds kind-specific hints, e.g. the endpoint config an
	// endpoint was created from.
	Attributes map[string]string
	// Address is where the entry came from, e.g. a Terraform resource address.
	Address string
}

type Inventory struct {
	Entries []InventoryEntry
}

// Merge adds entries from other that are not yet present. Group members are
// unioned.
func (inv *Inventory) Merge(other Inventory) {
	for _, e := range other.Entries {
		idx := inv.index(e.Kind, e.Identifier)
		if idx < 0 {
			inv.Entries = append(inv.Entries, e)
			continue
		}
		existing := &inv.Entries[idx]
		seen := make(map[string]struct{}, len(existing.Members))
		for _, m := range existing.Members {
			seen[m] = struct{}{}
		}
		for _, m := range e.Members {
			if _, ok := seen[m]; !ok {
				existing.Members = append(existing.Members, m)
				seen[m] = struct{}{}
			}
		}
	}
}

func (inv *Inventory) index(kind ResourceKind, identifier string) int {
	for i, e := range inv.Entries {
		if e.Kind == kind && e.Identifier == identifier {
			return i
		}
	}
	return -1
}

func (inv Inventory) OfKind(kind ResourceKind) []InventoryEntry {
	var out []InventoryEntry
	for _, e := range inv.Entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
