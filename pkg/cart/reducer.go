package cart

import "storefront/pkg/commerce"

// Apply is the optimistic reducer: given the last known snapshot (nil for
// absent) and a pending mutation, it produces the predicted snapshot shown
// to the UI before the backend confirms. Pure and synchronous: no I/O, no
// clock, deterministic for a given input pair.
//
// Predicted totals are best effort. Line costs and the subtotal are computed
// from listed unit prices; tax is carried from the prior snapshot (zero when
// none existed) and is corrected by the next authoritative read.
func Apply(current *commerce.Cart, m Mutation) commerce.Cart {
	var next commerce.Cart
	if current == nil {
		// First interaction with no prior cart: synthesize an empty
		// snapshot under a placeholder identity so the UI never
		// observes an absent cart afterwards.
		next = commerce.Cart{ID: pendingCartID}
	} else {
		next = current.Clone()
	}

	switch m.Kind {
	case MutationAdd:
		applyAdd(&next, m.Merchandise, m.Quantity)
	case MutationUpdate:
		applyUpdate(&next, m.LineID, m.Delta)
	case MutationRemove:
		removeLine(&next, m.LineID)
	}

	recompute(&next)
	return next
}

// applyAdd merges into an existing line for the same variant, otherwise
// appends a new line. Newly added lines keep append order; display sorting
// is a presentation concern.
func applyAdd(c *commerce.Cart, merch commerce.Merchandise, qty int) {
	if qty < 1 {
		qty = 1
	}
	if line := c.LineByMerchandise(merch.ID); line != nil {
		line.Quantity += qty
		return
	}
	c.Lines = append(c.Lines, commerce.Line{
		ID:          pendingLineID(merch.ID),
		Merchandise: merch,
		Quantity:    qty,
	})
}

// applyUpdate shifts the line's quantity by delta. Zero or below removes the
// line entirely; an unknown line id is a no-op (the line may already have
// been removed by a faster mutation).
func applyUpdate(c *commerce.Cart, lineID string, delta int) {
	line := c.Line(lineID)
	if line == nil {
		return
	}
	if line.Quantity+delta <= 0 {
		removeLine(c, lineID)
		return
	}
	line.Quantity += delta
}

func removeLine(c *commerce.Cart, lineID string) {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
	}
}

// recompute derives line costs, the total quantity and the best-effort cost
// aggregates. Tax is whatever the last authoritative snapshot reported.
func recompute(c *commerce.Cart) {
	var subtotal commerce.Money
	total := 0
	for i := range c.Lines {
		line := &c.Lines[i]
		line.Cost = line.Merchandise.Price.Mul(line.Quantity)
		subtotal = subtotal.Add(line.Cost)
		total += line.Quantity
	}
	if subtotal.Currency == "" {
		subtotal.Currency = c.Cost.Subtotal.Currency
	}
	c.Cost.Subtotal = subtotal
	c.Cost.Tax.Currency = subtotal.Currency
	c.Cost.Total = subtotal.Add(c.Cost.Tax)
	c.TotalQuantity = total
	if c.Lines == nil {
		// An emptied cart is still an explicit snapshot, not absence.
		c.Lines = []commerce.Line{}
	}
}
