package domain

// ItemKind tags the category of a purchasable product.
type ItemKind string

const (
	ItemKindRank   ItemKind = "rank"
	ItemKindBundle ItemKind = "bundle"
	ItemKindOther  ItemKind = "other"
)

// GiftTarget identifies the recipient of a gifted line item.
type GiftTarget struct {
	Platform   string `json:"platform"`
	PlatformID string `json:"platform_id"`
	Username   string `json:"username,omitempty"`
}

// Sale describes the promotion a discounted line was added under.
type Sale struct {
	Name       string `json:"name"`
	PercentOff int    `json:"percent_off,omitempty"`
}

// LineItem is one entry in the cart. A line is distinct from a product: the
// same product may appear as multiple lines (one self-purchase plus any
// number of gift copies), so each line carries its own unique LineID.
type LineItem struct {
	LineID    string   `json:"line_id"`
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	Kind      ItemKind `json:"kind"`

	// Quantity is always 1. Purchase intents are never merged into a single
	// line, so that distinct gift recipients stay independently addressable.
	Quantity int `json:"quantity"`

	// Prices are in cents.
	UnitPrice     int64 `json:"unit_price"`
	OriginalPrice int64 `json:"original_price,omitempty"`
	Sale          *Sale `json:"sale,omitempty"`

	Gift         *GiftTarget `json:"gift,omitempty"`
	Subscription bool        `json:"subscription,omitempty"`
}

// IsGift reports whether the line has a gift recipient set.
func (l *LineItem) IsGift() bool {
	return l.Gift != nil
}
