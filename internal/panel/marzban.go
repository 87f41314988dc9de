package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xshayank/vpnmarket-reseller/internal/pkg/httpclient"
)

// MarzbanClient implements PanelClient for Marzban panels. Clients are cached
// and shared between the cron jobs and the HTTP handlers, so token refresh is
// guarded by a lock.
type MarzbanClient struct {
	baseURL  string
	username string
	password string

	mu        sync.Mutex
	token     string
	tokenTime time.Time
	client    *httpclient.Client
}

// NewMarzbanClient creates a new Marzban panel client.
func NewMarzbanClient(baseURL, username, password string) *MarzbanClient {
	return &MarzbanClient{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		username: strings.TrimSpace(username),
		password: password,
		client:   httpclient.New().WithTimeout(30 * time.Second).WithInsecureSkipVerify(),
	}
}

func (m *MarzbanClient) PanelType() string { return "marzban" }

// Authenticate obtains a bearer token from the Marzban panel.
func (m *MarzbanClient) Authenticate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticate(ctx)
}

// authenticate does the token exchange. Callers must hold mu.
func (m *MarzbanClient) authenticate(ctx context.Context) error {
	resp, err := m.client.PostForm(m.baseURL+"/api/admin/token", map[string]string{
		"username": m.username,
		"password": m.password,
	})
	if err != nil {
		return fmt.Errorf("marzban auth failed: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("marzban auth parse error: %w", err)
	}

	token, ok := result["access_token"].(string)
	if !ok || strings.TrimSpace(token) == "" {
		return fmt.Errorf("marzban auth: no access_token in response")
	}

	m.token = token
	m.tokenTime = time.Now()
	m.client = m.client.WithBearerToken(token)
	return nil
}

// ensureAuth re-authenticates when the token is missing or stale and returns
// the client carrying the current token, so callers never read the client
// field while another goroutine refreshes it.
func (m *MarzbanClient) ensureAuth(ctx context.Context) (*httpclient.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" || time.Since(m.tokenTime) > 50*time.Minute {
		if err := m.authenticate(ctx); err != nil {
			return nil, err
		}
	}
	return m.client, nil
}

func (m *MarzbanClient) GetUser(ctx context.Context, username string) (*PanelUser, error) {
	client, err := m.ensureAuth(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.Get(m.baseURL + "/api/user/" + username)
	if err != nil {
		return nil, fmt.Errorf("marzban get user failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("marzban parse error: %w", err)
	}
	if detail := strings.TrimSpace(getString(raw, "detail")); strings.EqualFold(detail, "User not found") {
		return nil, fmt.Errorf("user not found")
	}

	user := &PanelUser{
		Username: getString(raw, "username"),
		Status:   getString(raw, "status"),
	}
	if v, ok := raw["data_limit"].(float64); ok {
		user.DataLimit = int64(v)
	}
	if v, ok := raw["used_traffic"].(float64); ok {
		user.UsedTraffic = int64(v)
	}
	if v, ok := raw["expire"].(float64); ok {
		user.ExpireTime = int64(v)
	}

	return user, nil
}

func (m *MarzbanClient) setStatus(ctx context.Context, username, status string) error {
	client, err := m.ensureAuth(ctx)
	if err != nil {
		return err
	}

	body, _ := json.Marshal(map[string]interface{}{"status": status})
	resp, err := client.Put(m.baseURL+"/api/user/"+username, body)
	if err != nil {
		return fmt.Errorf("marzban modify user failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return fmt.Errorf("marzban parse modify response: %w", err)
	}
	if detail := strings.TrimSpace(getString(raw, "detail")); detail != "" {
		return fmt.Errorf("marzban modify user error: %s", detail)
	}
	return nil
}

func (m *MarzbanClient) EnableUser(ctx context.Context, username string) error {
	return m.setStatus(ctx, username, "active")
}

func (m *MarzbanClient) DisableUser(ctx context.Context, username string) error {
	return m.setStatus(ctx, username, "disabled")
}

func (m *MarzbanClient) ResetTraffic(ctx context.Context, username string) error {
	client, err := m.ensureAuth(ctx)
	if err != nil {
		return err
	}

	_, err = client.Post(m.baseURL+"/api/user/"+username+"/reset", nil)
	return err
}

// Helper to safely get string from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
