package shopify

import (
	"context"
	"fmt"
)

// mutationPayload is the shared shape of every cart mutation response.
type mutationPayload struct {
	Cart       *Cart       `json:"cart"`
	UserErrors []userError `json:"userErrors"`
}

// cartFromPayload applies the userErrors-then-cart checks shared by all
// mutations. A 2xx response with neither a cart nor a user error is treated
// as a malformed reply.
func cartFromPayload(operation string, p mutationPayload) (*Cart, error) {
	if err := firstUserError(p.UserErrors); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	if p.Cart == nil {
		return nil, fmt.Errorf("%s: response has no cart: %w", operation, ErrTransport)
	}
	return p.Cart, nil
}

func validateLineInputs(operation string, lines []LineInput) error {
	if len(lines) == 0 {
		return fmt.Errorf("%s: at least one line item is required: %w", operation, ErrInvalidInput)
	}
	for _, l := range lines {
		if l.MerchandiseID == "" {
			return fmt.Errorf("%s: merchandise ID is required: %w", operation, ErrInvalidInput)
		}
		if l.Quantity < 1 {
			return fmt.Errorf("%s: quantity must be positive, got %d: %w", operation, l.Quantity, ErrInvalidInput)
		}
	}
	return nil
}

// CreateCart allocates a new cart. lines may be nil for an empty cart;
// when given, every entry must carry a positive quantity.
func (c *Client) CreateCart(ctx context.Context, lines []LineInput) (*Cart, error) {
	const op = "cartCreate"
	input := map[string]any{}
	if lines != nil {
		if err := validateLineInputs(op, lines); err != nil {
			return nil, err
		}
		input["lines"] = lines
	}

	var data struct {
		CartCreate mutationPayload `json:"cartCreate"`
	}
	if err := c.do(ctx, op, createCartMutation, map[string]any{"input": input}, &data); err != nil {
		return nil, err
	}
	return cartFromPayload(op, data.CartCreate)
}

// AddLines appends lines to an existing cart and returns the full updated
// snapshot. Whether same-variant lines coalesce is the platform's decision.
func (c *Client) AddLines(ctx context.Context, cartID string, lines []LineInput) (*Cart, error) {
	const op = "cartLinesAdd"
	if cartID == "" {
		return nil, fmt.Errorf("%s: cart ID is required: %w", op, ErrInvalidInput)
	}
	if err := validateLineInputs(op, lines); err != nil {
		return nil, err
	}

	var data struct {
		CartLinesAdd mutationPayload `json:"cartLinesAdd"`
	}
	vars := map[string]any{"cartId": cartID, "lines": lines}
	if err := c.do(ctx, op, addLinesMutation, vars, &data); err != nil {
		return nil, err
	}
	return cartFromPayload(op, data.CartLinesAdd)
}

// UpdateLines changes quantities of existing lines. Quantities below 1 are
// rejected: a decrement to zero must be routed to RemoveLines by the caller.
func (c *Client) UpdateLines(ctx context.Context, cartID string, updates []LineUpdate) (*Cart, error) {
	const op = "cartLinesUpdate"
	if cartID == "" {
		return nil, fmt.Errorf("%s: cart ID is required: %w", op, ErrInvalidInput)
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("%s: at least one line update is required: %w", op, ErrInvalidInput)
	}
	for _, u := range updates {
		if u.LineID == "" {
			return nil, fmt.Errorf("%s: line ID is required: %w", op, ErrInvalidInput)
		}
		if u.Quantity < 1 {
			return nil, fmt.Errorf("%s: quantity must be positive, got %d: %w", op, u.Quantity, ErrInvalidInput)
		}
	}

	var data struct {
		CartLinesUpdate mutationPayload `json:"cartLinesUpdate"`
	}
	vars := map[string]any{"cartId": cartID, "lines": updates}
	if err := c.do(ctx, op, updateLinesMutation, vars, &data); err != nil {
		return nil, err
	}
	return cartFromPayload(op, data.CartLinesUpdate)
}

// RemoveLines drops the given lines and returns the full updated snapshot.
func (c *Client) RemoveLines(ctx context.Context, cartID string, lineIDs []string) (*Cart, error) {
	const op = "cartLinesRemove"
	if cartID == "" {
		return nil, fmt.Errorf("%s: cart ID is required: %w", op, ErrInvalidInput)
	}
	if len(lineIDs) == 0 {
		return nil, fmt.Errorf("%s: at least one line ID is required: %w", op, ErrInvalidInput)
	}
	for _, id := range lineIDs {
		if id == "" {
			return nil, fmt.Errorf("%s: line ID is required: %w", op, ErrInvalidInput)
		}
	}

	var data struct {
		CartLinesRemove mutationPayload `json:"cartLinesRemove"`
	}
	vars := map[string]any{"cartId": cartID, "lineIds": lineIDs}
	if err := c.do(ctx, op, removeLinesMutation, vars, &data); err != nil {
		return nil, err
	}
	return cartFromPayload(op, data.CartLinesRemove)
}

// GetCart fetches a cart by ID. A missing cart is a valid negative result:
// (nil, nil), distinct from transport or server errors.
func (c *Client) GetCart(ctx context.Context, cartID string) (*Cart, error) {
	const op = "cart"
	if cartID == "" {
		return nil, fmt.Errorf("%s: cart ID is required: %w", op, ErrInvalidInput)
	}

	var data struct {
		Cart *Cart `json:"cart"`
	}
	if err := c.do(ctx, op, getCartQuery, map[string]any{"cartId": cartID}, &data); err != nil {
		return nil, err
	}
	return data.Cart, nil
}
