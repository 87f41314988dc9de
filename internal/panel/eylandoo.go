package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xshayank/vpnmarket-reseller/internal/pkg/httpclient"
)

// EylandooClient implements PanelClient for Eylandoo panels. Eylandoo uses a
// static API key instead of a login session, and reports usage through two
// counters (used_traffic and data_used) that must both be zeroed on reset.
type EylandooClient struct {
	baseURL string
	apiKey  string
	client  *httpclient.Client
}

func NewEylandooClient(baseURL, apiKey string) *EylandooClient {
	return &EylandooClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client: httpclient.New().
			WithTimeout(30 * time.Second).
			WithInsecureSkipVerify().
			WithHeader("X-API-Key", strings.TrimSpace(apiKey)),
	}
}

func (e *EylandooClient) PanelType() string { return "eylandoo" }

// Authenticate verifies the API key against the panel's ping endpoint.
func (e *EylandooClient) Authenticate(ctx context.Context) error {
	resp, err := e.client.Get(e.baseURL + "/api/v1/ping")
	if err != nil {
		return fmt.Errorf("eylandoo auth failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return fmt.Errorf("eylandoo auth parse error: %w", err)
	}
	if ok, _ := raw["ok"].(bool); !ok {
		return fmt.Errorf("eylandoo auth rejected")
	}
	return nil
}

func (e *EylandooClient) GetUser(ctx context.Context, username string) (*PanelUser, error) {
	resp, err := e.client.Get(e.baseURL + "/api/v1/users/" + username)
	if err != nil {
		return nil, fmt.Errorf("eylandoo get user failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("eylandoo parse user failed: %w", err)
	}
	if errMsg := strings.TrimSpace(getString(raw, "error")); errMsg != "" {
		return nil, fmt.Errorf("eylandoo get user: %s", errMsg)
	}

	// Eylandoo splits usage across two counters depending on the tunnel
	// type; the reconciler only cares about the sum.
	used := toInt64(raw["used_traffic"]) + toInt64(raw["data_used"])

	status := strings.ToLower(strings.TrimSpace(getString(raw, "status")))
	if status == "" {
		if enabled := boolFromAny(raw["enabled"], true); enabled {
			status = "active"
		} else {
			status = "disabled"
		}
	}

	return &PanelUser{
		Username:    strings.TrimSpace(getString(raw, "username")),
		Status:      status,
		DataLimit:   toInt64(raw["traffic_limit"]),
		UsedTraffic: used,
		ExpireTime:  parseAnyTime(raw["expires_at"]),
	}, nil
}

func (e *EylandooClient) setEnabled(ctx context.Context, username string, enabled bool) error {
	action := "enable"
	if !enabled {
		action = "disable"
	}

	resp, err := e.client.Post(e.baseURL+"/api/v1/users/"+username+"/"+action, nil)
	if err != nil {
		return fmt.Errorf("eylandoo %s failed: %w", action, err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return fmt.Errorf("eylandoo %s parse failed: %w", action, err)
	}
	if ok, _ := raw["ok"].(bool); !ok {
		return fmt.Errorf("eylandoo %s rejected: %s", action, getString(raw, "error"))
	}
	return nil
}

func (e *EylandooClient) EnableUser(ctx context.Context, username string) error {
	return e.setEnabled(ctx, username, true)
}

func (e *EylandooClient) DisableUser(ctx context.Context, username string) error {
	return e.setEnabled(ctx, username, false)
}

// ResetTraffic zeroes both panel counters so the panel's own usage reporting
// agrees with the local settled accounting afterwards.
func (e *EylandooClient) ResetTraffic(ctx context.Context, username string) error {
	body, _ := json.Marshal(map[string]interface{}{
		"used_traffic": 0,
		"data_used":    0,
	})

	resp, err := e.client.Post(e.baseURL+"/api/v1/users/"+username+"/reset", body)
	if err != nil {
		return fmt.Errorf("eylandoo reset failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return fmt.Errorf("eylandoo reset parse failed: %w", err)
	}
	if ok, _ := raw["ok"].(bool); !ok {
		return fmt.Errorf("eylandoo reset rejected: %s", getString(raw, "error"))
	}
	return nil
}
