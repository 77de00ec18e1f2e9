package connectors

import (
	"context"
	"net/http"
	"net/url"

	"github.com/xela07ax/nft-agents-console/internal/domain"
)

// InferenceModels: GET /inference/models.
func (c *Client) InferenceModels(ctx context.Context) (domain.InferenceModels, error) {
	var out domain.InferenceModels
	err := c.call(ctx, "inference models", http.MethodGet, "/inference/models", nil, &out)
	return out, err
}

// SetMOAModel: POST /inference/moa/{type} {model}; type = primary | fallback.
func (c *Client) SetMOAModel(ctx context.Context, kind, model string) error {
	body := map[string]string{"model": model}
	return c.call(ctx, "set moa model", http.MethodPost, "/inference/moa/"+url.PathEscape(kind), body, nil)
}

// SaveAPIKey: POST /settings/api-keys {provider, apiKey}.
func (c *Client) SaveAPIKey(ctx context.Context, in domain.APIKeyInput) error {
	return c.call(ctx, "save api key", http.MethodPost, "/settings/api-keys", in, nil)
}
