package domain

// ItemInput is the caller-supplied description of a cart line.
// Transports validate it before it reaches the Coordinator.
type ItemInput struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Item is a cart line as stored by a provider.
// ID is assigned by the provider and is only meaningful inside the owning context.
type Item struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Input strips the provider-assigned identifier, producing the payload used to replay the item.
func (i Item) Input() ItemInput {
	return ItemInput{
		ProductID: i.ProductID,
		Name:      i.Name,
		Price:     i.Price,
		Quantity:  i.Quantity,
	}
}

// Cart is the view of a cart returned to callers.
type Cart struct {
	ID    string  `json:"id"`
	Items []Item  `json:"items"`
	Total float64 `json:"total"`
}

// NewCart builds a cart view over a copy of items, computing the total.
func NewCart(id string, items []Item) *Cart {
	copied := CloneItems(items)
	return &Cart{
		ID:    id,
		Items: copied,
		Total: Total(copied),
	}
}

// Total returns Σ price × quantity.
func Total(items []Item) float64 {
	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

// CloneItems returns a copy of items that never aliases the input. A nil input yields an empty slice.
func CloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// FindItem returns the index of the item with the given id, or -1.
func FindItem(items []Item, itemID string) int {
	for i, it := range items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

// FindProduct returns the index of the first item with the given product id, or -1.
// Duplicate product ids are resolved to the first match.
func FindProduct(items []Item, productID string) int {
	for i, it := range items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}
