package connectors

import (
	"context"
	"net/http"
	"net/url"

	"github.com/xela07ax/nft-agents-console/internal/domain"
)

func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out struct {
		Users []domain.User `json:"users"`
	}
	err := c.call(ctx, "list users", http.MethodGet, "/users", nil, &out)
	return out.Users, err
}

func (c *Client) GetUser(ctx context.Context, id string) (domain.User, error) {
	var out struct {
		User domain.User `json:"user"`
	}
	err := c.call(ctx, "get user", http.MethodGet, "/users/"+url.PathEscape(id), nil, &out)
	return out.User, err
}

func (c *Client) CreateUser(ctx context.Context, in domain.UserInput) (domain.User, error) {
	var out struct {
		User domain.User `json:"user"`
	}
	err := c.call(ctx, "create user", http.MethodPost, "/users", in, &out)
	return out.User, err
}

func (c *Client) UpdateUser(ctx context.Context, id string, in domain.UserInput) (domain.User, error) {
	var out struct {
		User domain.User `json:"user"`
	}
	err := c.call(ctx, "update user", http.MethodPut, "/users/"+url.PathEscape(id), in, &out)
	return out.User, err
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.call(ctx, "delete user", http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}
