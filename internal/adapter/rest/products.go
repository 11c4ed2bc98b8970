package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"valikoo/internal/domain/entity"
	"valikoo/pkg/errors"
)

// ProductQuery carries the browse filters the search screens expose.
type ProductQuery struct {
	Query    string
	Category string
	MinPrice float64
	MaxPrice float64
	SortBy   string
	Order    string
}

func (q ProductQuery) encode() string {
	values := url.Values{}
	if q.Query != "" {
		values.Set("q", q.Query)
	}
	if q.Category != "" {
		values.Set("category", q.Category)
	}
	if q.MinPrice > 0 {
		values.Set("minPrice", strconv.FormatFloat(q.MinPrice, 'f', -1, 64))
	}
	if q.MaxPrice > 0 {
		values.Set("maxPrice", strconv.FormatFloat(q.MaxPrice, 'f', -1, 64))
	}
	if q.SortBy != "" {
		values.Set("sortBy", q.SortBy)
	}
	if q.Order != "" {
		values.Set("order", q.Order)
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

func (c *Client) ListProducts(ctx context.Context, query ProductQuery) ([]entity.Product, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, "/api/products"+query.encode(), nil)
	if err != nil {
		return nil, err
	}
	return decodeProducts(raw)
}

func (c *Client) GetProduct(ctx context.Context, productID string) (*entity.Product, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, "/api/products/"+productID, nil)
	if err != nil {
		return nil, err
	}
	var product entity.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil, errors.Decode("unrecognized product shape", err)
	}
	if product.ID == "" {
		return nil, errors.Decode("product carries no id", nil)
	}
	return &product, nil
}

// Notifications returns the persisted dashboard notifications, newest first.
func (c *Client) Notifications(ctx context.Context) ([]entity.Notification, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, "/api/notifications", nil)
	if err != nil {
		return nil, err
	}
	var list []entity.Notification
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, errors.Decode("unrecognized notification list shape", err)
	}
	return list, nil
}
