package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPAuthenticator signs in against the anonymous identity service over
// HTTP.
type HTTPAuthenticator struct {
	baseURL string
	client  *http.Client
}

func NewHTTPAuthenticator(baseURL string) *HTTPAuthenticator {
	return &HTTPAuthenticator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *HTTPAuthenticator) SignInAnonymously(ctx context.Context) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/anonymous", nil)
	if err != nil {
		return Identity{}, &AuthError{Err: err}
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return Identity{}, &AuthError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, &AuthError{Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return Identity{}, &AuthError{Err: err}
	}
	if id.UserID == "" {
		return Identity{}, &AuthError{Err: fmt.Errorf("empty user id in response")}
	}
	return id, nil
}
