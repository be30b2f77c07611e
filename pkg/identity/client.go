package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	apperrors "github.com/deepak1410/task-management/pkg/errors"
	"github.com/deepak1410/task-management/pkg/httpclient"
	"github.com/deepak1410/task-management/pkg/logger"
)

// HTTPDirectory resolves identities over the identity service's internal
// lookup endpoint, behind a circuit breaker.
type HTTPDirectory struct {
	client  *httpclient.CircuitBreakerClient
	baseURL string
}

// NewHTTPDirectory creates a directory client for the identity service at
// baseURL.
func NewHTTPDirectory(client *httpclient.CircuitBreakerClient, baseURL string) *HTTPDirectory {
	return &HTTPDirectory{
		client:  client,
		baseURL: baseURL,
	}
}

// GetByUsername fetches the principal for the given username. Unknown
// usernames map to ErrNotFound; transport failures, circuit-open rejections,
// and 5xx responses surface as errors the caller treats as resolution
// failure.
func (d *HTTPDirectory) GetByUsername(ctx context.Context, username string) (*Identity, error) {
	lookupURL := fmt.Sprintf("%s/internal/users/username/%s", d.baseURL, url.PathEscape(username))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create directory request: %w", err)
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}

	resp, err := d.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("directory lookup: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "identity")
	}

	var envelope struct {
		Data *Identity `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode directory response: %w", err)
	}
	if envelope.Data == nil || envelope.Data.Username == "" {
		return nil, apperrors.NotFound("user", username)
	}

	return envelope.Data, nil
}
