package cart

import (
	"strings"

	"storefront/pkg/commerce"
)

// MutationKind tags the three local cart mutations.
type MutationKind int

const (
	// MutationAdd adds quantity units of a merchandise variant.
	MutationAdd MutationKind = iota
	// MutationUpdate shifts a line's quantity by a delta.
	MutationUpdate
	// MutationRemove deletes a line.
	MutationRemove
)

func (k MutationKind) String() string {
	switch k {
	case MutationAdd:
		return "add"
	case MutationUpdate:
		return "update"
	case MutationRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Mutation is one pending local cart change: the unit of optimistic
// prediction. Mutations are ephemeral and never persisted.
type Mutation struct {
	Kind        MutationKind
	Merchandise commerce.Merchandise // MutationAdd
	Quantity    int                  // MutationAdd: units to add
	LineID      string               // MutationUpdate, MutationRemove
	Delta       int                  // MutationUpdate: signed quantity shift
}

// AddItem builds a mutation that adds quantity units of the variant.
func AddItem(m commerce.Merchandise, quantity int) Mutation {
	return Mutation{Kind: MutationAdd, Merchandise: m, Quantity: quantity}
}

// UpdateQuantity builds a mutation that shifts the line's quantity by delta.
// A resulting quantity <= 0 removes the line.
func UpdateQuantity(lineID string, delta int) Mutation {
	return Mutation{Kind: MutationUpdate, LineID: lineID, Delta: delta}
}

// RemoveItem builds a mutation that deletes the line.
func RemoveItem(lineID string) Mutation {
	return Mutation{Kind: MutationRemove, LineID: lineID}
}

// Identity placeholders used by the reducer until the backend assigns real
// ids. Deterministic so repeated applications compose predictably.
const (
	pendingCartID     = "pending"
	pendingLinePrefix = "pending/"
)

func pendingLineID(merchandiseID string) string {
	return pendingLinePrefix + merchandiseID
}

// PendingMerchandiseID extracts the variant id from a placeholder line id,
// or returns "" if the id is a real backend-assigned one.
func PendingMerchandiseID(lineID string) string {
	if rest, ok := strings.CutPrefix(lineID, pendingLinePrefix); ok {
		return rest
	}
	return ""
}
