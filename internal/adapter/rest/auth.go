package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"

	"valikoo/internal/domain/entity"
	"valikoo/pkg/errors"
)

var validate = validator.New()

type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
	Email       string `json:"email"`
}

// Login posts credentials form-encoded; the backend rejects JSON here and the
// web client deliberately kept this request form-encoded too.
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (*LoginResult, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)
	if rememberMe {
		form.Set("remember_me", "true")
	}

	raw, err := c.doForm(ctx, loginPath, form)
	if err != nil {
		return nil, err
	}

	var result LoginResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Decode("unrecognized login response", err)
	}
	if result.AccessToken == "" {
		return nil, errors.Decode("login response carries no token", nil)
	}
	return &result, nil
}

type RegisterInput struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=buyer traveler"`
	Phone    string `json:"phone,omitempty"`
	Country  string `json:"country,omitempty"`
	City     string `json:"city,omitempty"`
}

func (c *Client) Register(ctx context.Context, input RegisterInput) error {
	if err := validate.Struct(input); err != nil {
		return errors.BadRequest("invalid registration input", err)
	}
	_, err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", input)
	return err
}

// Me fetches the current user, used once at startup for sender-identity
// comparison.
func (c *Client) Me(ctx context.Context) (*entity.User, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return nil, err
	}
	var user entity.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, errors.Decode("unrecognized user shape", err)
	}
	return &user, nil
}
