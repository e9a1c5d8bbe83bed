// Package product defines the static license catalog.
//
// Catalog entries are immutable reference data: pricing and display
// attributes only. Availability lives in the key inventory pools.
package product

// Product describes one purchasable license tier.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PriceCents  int      `json:"priceCents"`
	Category    string   `json:"category"`
	Duration    string   `json:"duration"`
	Features    []string `json:"features"`
	Popular     bool     `json:"popular,omitempty"`
}

// Catalog is an ordered, immutable list of products.
type Catalog []Product

// Find returns the product with the given id.
func (c Catalog) Find(id string) (Product, bool) {
	for _, p := range c {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// IDs returns every product id in catalog order.
func (c Catalog) IDs() []string {
	ids := make([]string, len(c))
	for i, p := range c {
		ids[i] = p.ID
	}
	return ids
}

// Product ids sold by the shop.
const (
	Weekly   = "shadow-weekly"
	Monthly  = "shadow-monthly"
	Lifetime = "shadow-lifetime"
)

// Default returns the catalog the shop sells.
func Default() Catalog {
	return Catalog{
		{
			ID:          Weekly,
			Name:        "Weekly Key",
			Description: "Perfect for trying out Shadow Script. Full access for 7 days.",
			PriceCents:  100,
			Category:    "Keys",
			Duration:    "7 Days",
			Features: []string{
				"Full Script Access",
				"All Game Support",
				"Auto Updates",
				"7 Day Duration",
				"Discord Support",
			},
		},
		{
			ID:          Monthly,
			Name:        "Monthly Key",
			Description: "Best value for regular users. Full access for 30 days.",
			PriceCents:  300,
			Category:    "Keys",
			Duration:    "30 Days",
			Popular:     true,
			Features: []string{
				"Full Script Access",
				"All Game Support",
				"Auto Updates",
				"30 Day Duration",
				"Priority Discord Support",
				"Early Feature Access",
			},
		},
		{
			ID:          Lifetime,
			Name:        "Lifetime Key",
			Description: "One-time purchase. Never pay again with permanent access.",
			PriceCents:  500,
			Category:    "Keys",
			Duration:    "Forever",
			Features: []string{
				"Full Script Access",
				"All Game Support",
				"Auto Updates Forever",
				"Lifetime Duration",
				"VIP Discord Support",
				"Early Feature Access",
				"Beta Testing Access",
				"Custom Requests Priority",
			},
		},
	}
}
