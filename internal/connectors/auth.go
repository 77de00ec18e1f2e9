package connectors

import (
	"context"
	"net/http"

	"github.com/xela07ax/nft-agents-console/internal/domain"
)

func (c *Client) Login(ctx context.Context, req domain.LoginRequest) (domain.AuthResponse, error) {
	var out domain.AuthResponse
	err := c.call(ctx, "login", http.MethodPost, "/auth/login", req, &out)
	return out, err
}

func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (domain.AuthResponse, error) {
	var out domain.AuthResponse
	err := c.call(ctx, "register", http.MethodPost, "/auth/register", req, &out)
	return out, err
}

// Refresh обменивает текущий токен сессии на новый.
func (c *Client) Refresh(ctx context.Context) (domain.AuthResponse, error) {
	var out domain.AuthResponse
	err := c.call(ctx, "refresh token", http.MethodPost, "/auth/refresh", nil, &out)
	return out, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, "logout", http.MethodPost, "/auth/logout", nil, nil)
}
