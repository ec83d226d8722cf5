package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

// Client talks to a remote role directory over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{}}
}

func (c *Client) HasRole(ctx context.Context, agent domain.AgentID, role string) (bool, error) {
	cred, err := c.RoleCredential(ctx, agent, role)
	if err != nil {
		return false, err
	}
	return cred != nil, nil
}

func (c *Client) RoleCredential(ctx context.Context, agent domain.AgentID, role string) (*Credential, error) {
	url := fmt.Sprintf("%s/agents/%s/roles/%s", c.BaseURL, agent, role)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("role directory returned %d", resp.StatusCode)
	}
	var out struct {
		Credential Credential `json:"credential"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out.Credential, nil
}
