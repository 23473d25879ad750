package shopify

import "encoding/json"

// Money is a server-computed amount. Amount stays a decimal string: currency
// arithmetic and tax rules are the platform's concern, never recomputed here.
type Money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

// Image is a hosted product or collection image.
type Image struct {
	ID      string `json:"id,omitempty"`
	URL     string `json:"url"`
	AltText string `json:"altText,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// CartCost carries the server-computed cart totals.
type CartCost struct {
	TotalAmount    Money  `json:"totalAmount"`
	SubtotalAmount Money  `json:"subtotalAmount"`
	TotalTaxAmount *Money `json:"totalTaxAmount,omitempty"`
}

// Merchandise is the purchasable variant referenced by a cart line,
// provided read-only by the API on every mutation response.
type Merchandise struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Price   Money  `json:"priceV2"`
	Product struct {
		ID            string `json:"id"`
		Title         string `json:"title"`
		Handle        string `json:"handle"`
		FeaturedImage *Image `json:"featuredImage,omitempty"`
	} `json:"product"`
}

// CartLine is one variant-and-quantity entry within a cart.
type CartLine struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
	Cost     struct {
		TotalAmount Money `json:"totalAmount"`
	} `json:"cost"`
	Merchandise Merchandise `json:"merchandise"`
}

// CartLines decodes the API's line connection into a flat, ordered slice and
// re-encodes it as a plain array for downstream consumers.
type CartLines []CartLine

func (l *CartLines) UnmarshalJSON(data []byte) error {
	var conn struct {
		Edges []struct {
			Node CartLine `json:"node"`
		} `json:"edges"`
	}
	if err := json.Unmarshal(data, &conn); err != nil {
		return err
	}
	lines := make(CartLines, 0, len(conn.Edges))
	for _, e := range conn.Edges {
		lines = append(lines, e.Node)
	}
	*l = lines
	return nil
}

func (l CartLines) MarshalJSON() ([]byte, error) {
	return json.Marshal([]CartLine(l))
}

// Cart is the remotely owned shopping cart aggregate. Every field is taken
// verbatim from the API response; TotalQuantity is never derived locally.
type Cart struct {
	ID            string    `json:"id"`
	CheckoutURL   string    `json:"checkoutUrl"`
	TotalQuantity int       `json:"totalQuantity"`
	Cost          CartCost  `json:"cost"`
	Lines         CartLines `json:"lines"`
}

// LineInput is a (variant, quantity) pair for cart creation and line adds.
type LineInput struct {
	MerchandiseID string `json:"merchandiseId"`
	Quantity      int    `json:"quantity"`
}

// LineUpdate changes the quantity of an existing cart line.
type LineUpdate struct {
	LineID   string `json:"id"`
	Quantity int    `json:"quantity"`
}

// Variant is a purchasable SKU of a product.
type Variant struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Price            Money  `json:"price"`
	AvailableForSale bool   `json:"availableForSale"`
}

// PriceRange holds the product's variant price bounds.
type PriceRange struct {
	MinVariantPrice Money `json:"minVariantPrice"`
}

// Metafield is a custom key-value attribute attached to a product
// (e.g. the URL of its 3D model asset).
type Metafield struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

// Product is a catalog entry with its images and variants.
type Product struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Handle      string              `json:"handle"`
	PriceRange  PriceRange          `json:"priceRange"`
	Images      edgeList[Image]     `json:"images"`
	Variants    edgeList[Variant]   `json:"variants"`
	Metafields  edgeList[Metafield] `json:"metafields,omitempty"`
}

// Collection groups products under a handle.
type Collection struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Handle      string `json:"handle"`
	Description string `json:"description,omitempty"`
	Image       *Image `json:"image,omitempty"`
}

// PageInfo carries cursor pagination state.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor,omitempty"`
}

// ProductPage is one page of the paginated product listing.
type ProductPage struct {
	Products []Product `json:"products"`
	PageInfo PageInfo  `json:"pageInfo"`
}

// edgeList flattens a GraphQL connection into a slice.
type edgeList[T any] []T

func (l *edgeList[T]) UnmarshalJSON(data []byte) error {
	var conn struct {
		Edges []struct {
			Node T `json:"node"`
		} `json:"edges"`
	}
	if err := json.Unmarshal(data, &conn); err != nil {
		return err
	}
	out := make(edgeList[T], 0, len(conn.Edges))
	for _, e := range conn.Edges {
		out = append(out, e.Node)
	}
	*l = out
	return nil
}

func (l edgeList[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal([]T(l))
}

// userError is a business-level rejection nested under a mutation payload.
type userError struct {
	Field   []string `json:"field,omitempty"`
	Message string   `json:"message"`
}

// graphQLError is a query/transport-level error from the response envelope.
type graphQLError struct {
	Message string `json:"message"`
}
