package shopify

import (
	"context"
	"fmt"
	"regexp"
)

// Handles are lowercase alphanumeric with hyphens; anything else is
// rejected before it reaches a query document.
var handleRe = regexp.MustCompile(`^[a-z0-9-]+$`)

func validateHandle(operation, handle string) error {
	if handle == "" || !handleRe.MatchString(handle) {
		return fmt.Errorf("%s: invalid handle %q: %w", operation, handle, ErrInvalidInput)
	}
	return nil
}

func validateFirst(operation string, first int) error {
	if first < 1 || first > 250 {
		return fmt.Errorf("%s: first must be between 1 and 250, got %d: %w", operation, first, ErrInvalidInput)
	}
	return nil
}

// Product fetches a single product by handle, or (nil, nil) if not found.
func (c *Client) Product(ctx context.Context, handle string) (*Product, error) {
	const op = "product"
	if err := validateHandle(op, handle); err != nil {
		return nil, err
	}

	var data struct {
		Product *Product `json:"product"`
	}
	if err := c.do(ctx, op, productQuery, map[string]any{"handle": handle}, &data); err != nil {
		return nil, err
	}
	return data.Product, nil
}

// Products fetches one page of the catalog. after is the cursor from the
// previous page, empty for the first page.
func (c *Client) Products(ctx context.Context, first int, after string) (*ProductPage, error) {
	const op = "products"
	if err := validateFirst(op, first); err != nil {
		return nil, err
	}

	vars := map[string]any{"first": first}
	if after != "" {
		vars["after"] = after
	}
	var data struct {
		Products struct {
			Edges []struct {
				Node Product `json:"node"`
			} `json:"edges"`
			PageInfo PageInfo `json:"pageInfo"`
		} `json:"products"`
	}
	if err := c.do(ctx, op, productsQuery, vars, &data); err != nil {
		return nil, err
	}

	page := &ProductPage{
		Products: make([]Product, 0, len(data.Products.Edges)),
		PageInfo: data.Products.PageInfo,
	}
	for _, e := range data.Products.Edges {
		page.Products = append(page.Products, e.Node)
	}
	return page, nil
}

// SearchProducts runs a free-text product search.
func (c *Client) SearchProducts(ctx context.Context, query string, first int) (*ProductPage, error) {
	const op = "search"
	if query == "" {
		return nil, fmt.Errorf("%s: query is required: %w", op, ErrInvalidInput)
	}
	if err := validateFirst(op, first); err != nil {
		return nil, err
	}

	var data struct {
		Products struct {
			Edges []struct {
				Node Product `json:"node"`
			} `json:"edges"`
			PageInfo PageInfo `json:"pageInfo"`
		} `json:"products"`
	}
	vars := map[string]any{"query": query, "first": first}
	if err := c.do(ctx, op, searchProductsQuery, vars, &data); err != nil {
		return nil, err
	}

	page := &ProductPage{
		Products: make([]Product, 0, len(data.Products.Edges)),
		PageInfo: data.Products.PageInfo,
	}
	for _, e := range data.Products.Edges {
		page.Products = append(page.Products, e.Node)
	}
	return page, nil
}

// Collections lists the shop's collections.
func (c *Client) Collections(ctx context.Context, first int) ([]Collection, error) {
	const op = "collections"
	if err := validateFirst(op, first); err != nil {
		return nil, err
	}

	var data struct {
		Collections edgeList[Collection] `json:"collections"`
	}
	if err := c.do(ctx, op, collectionsQuery, map[string]any{"first": first}, &data); err != nil {
		return nil, err
	}
	return data.Collections, nil
}
