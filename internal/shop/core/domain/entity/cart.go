package entity

// CartLine is one product in a cart. Quantity is at least 1; a line that
// would drop to 0 is removed instead.
type CartLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	ImageRef  string  `json:"image,omitempty"`
}

// Subtotal is price × quantity.
func (l CartLine) Subtotal() float64 {
	return l.Price * float64(l.Quantity)
}

// CartTotal is Σ price × quantity over lines.
func CartTotal(lines []CartLine) float64 {
	var total float64
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total
}

// CartCount is Σ quantity over lines.
func CartCount(lines []CartLine) int {
	var n int
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// FindLine returns the index of productID in lines, or -1.
func FindLine(lines []CartLine, productID string) int {
	for i, l := range lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// ReconcileLine merges a line returned by the backend with the line the
// client already knew for the same product.
//
// Field precedence:
//   - ProductID and Quantity always come from server.
//   - Name, Price and ImageRef come from local when local has a usable value
//     (non-empty name, positive price, non-empty image); otherwise from server.
//
// A nil local returns server unchanged.
func ReconcileLine(server CartLine, local *CartLine) CartLine {
	out := server
	if local == nil {
		return out
	}
	if local.Name != "" {
		out.Name = local.Name
	}
	if local.Price > 0 {
		out.Price = local.Price
	}
	if local.ImageRef != "" {
		out.ImageRef = local.ImageRef
	}
	return out
}

// ReconcileLines runs ReconcileLine over a whole server collection. The
// server decides membership, order and quantities; lines with quantity < 1
// are dropped. known holds the client's display data, later entries
// overriding earlier ones for the same product.
func ReconcileLines(server []CartLine, known ...CartLine) []CartLine {
	index := make(map[string]CartLine, len(known))
	for _, k := range known {
		index[k.ProductID] = k
	}

	out := make([]CartLine, 0, len(server))
	for _, s := range server {
		if s.Quantity < 1 {
			continue
		}
		if k, ok := index[s.ProductID]; ok {
			out = append(out, ReconcileLine(s, &k))
			continue
		}
		out = append(out, ReconcileLine(s, nil))
	}
	return out
}

// LineFromSnapshot is the local view of a product about to be added.
func LineFromSnapshot(p ProductSnapshot) CartLine {
	return CartLine{ProductID: p.ID, Name: p.Name, Price: p.Price, ImageRef: p.ImageRef}
}
