package entity

import "time"

const (
	RoleBuyer    = "buyer"
	RoleTraveler = "traveler"
	RoleAdmin    = "admin"
)

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
	Country  string `json:"country,omitempty"`
	City     string `json:"city,omitempty"`

	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}
