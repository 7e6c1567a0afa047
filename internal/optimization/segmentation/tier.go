package segmentation

// Tier is one of the four fixed customer segments. The numeric value is the
// centroid index the tier is permanently bound to.
type Tier int

const (
	// Bronze covers low eco score, low spend customers.
	Bronze Tier = iota
	// Silver covers high eco score customers on a budget.
	Silver
	// Gold covers high spenders with a low eco score.
	Gold
	// Titanium covers premium, eco conscious customers.
	Titanium
)

// NumTiers is the number of centroids a Model maintains.
const NumTiers = 4

var tierNames = [NumTiers]string{"Bronze", "Silver", "Gold", "Titanium"}

// String returns the tier name used in payloads.
func (t Tier) String() string {
	if t < 0 || int(t) >= NumTiers {
		return "Unknown"
	}
	return tierNames[t]
}

// Valid reports whether t is one of the four tiers.
func (t Tier) Valid() bool {
	return t >= Bronze && t <= Titanium
}

// ChurnRisk estimates the cancellation likelihood, in percent, from the
// wallet balance alone.
func ChurnRisk(walletBalance int) float64 {
	switch {
	case walletBalance < 50:
		return 85.0
	case walletBalance < 200:
		return 55.0
	case walletBalance < 500:
		return 25.0
	default:
		return 5.0
	}
}
