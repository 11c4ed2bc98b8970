package entity

import (
	"encoding/json"
	"time"
)

type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Price       float64   `json:"price,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	Category    string    `json:"category,omitempty"`
	Status      string    `json:"status,omitempty"` // "active", "fulfilled"
	OwnerID     string    `json:"ownerId,omitempty"`
	TravelerID  string    `json:"travelerId,omitempty"`
	FromCountry string    `json:"fromCountry,omitempty"`
	ToCountry   string    `json:"toCountry,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

func (p *Product) UnmarshalJSON(raw []byte) error {
	var wire struct {
		ID          string   `json:"id"`
		MongoID     string   `json:"_id"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Image       string   `json:"image"`
		Price       float64  `json:"price"`
		Currency    string   `json:"currency"`
		Category    string   `json:"category"`
		Status      string   `json:"status"`
		OwnerID     string   `json:"ownerId"`
		TravelerID  string   `json:"travelerId"`
		FromCountry string   `json:"fromCountry"`
		ToCountry   string   `json:"toCountry"`
		CreatedAt   flexTime `json:"createdAt"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}
	p.ID = wire.ID
	if p.ID == "" {
		p.ID = wire.MongoID
	}
	p.Title = wire.Title
	p.Description = wire.Description
	p.Image = wire.Image
	p.Price = wire.Price
	p.Currency = wire.Currency
	p.Category = wire.Category
	p.Status = wire.Status
	p.OwnerID = wire.OwnerID
	p.TravelerID = wire.TravelerID
	p.FromCountry = wire.FromCountry
	p.ToCountry = wire.ToCountry
	p.CreatedAt = wire.CreatedAt.Time
	return nil
}

// Summary trims a product to the snapshot conversations and notifications
// carry.
func (p *Product) Summary() *ProductSummary {
	return &ProductSummary{ID: p.ID, Title: p.Title, Image: p.Image}
}
