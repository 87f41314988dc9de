package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xshayank/vpnmarket-reseller/internal/pkg/httpclient"
)

// MarzneshinClient implements PanelClient for Marzneshin panels. Like the
// Marzban client it is shared between jobs and handlers, so token refresh is
// guarded by a lock.
type MarzneshinClient struct {
	baseURL  string
	username string
	password string

	mu        sync.Mutex
	token     string
	tokenTime time.Time
	client    *httpclient.Client
}

func NewMarzneshinClient(baseURL, username, password string) *MarzneshinClient {
	return &MarzneshinClient{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		username: strings.TrimSpace(username),
		password: password,
		client:   httpclient.New().WithTimeout(30 * time.Second).WithInsecureSkipVerify(),
	}
}

func (m *MarzneshinClient) PanelType() string { return "marzneshin" }

func (m *MarzneshinClient) Authenticate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticate(ctx)
}

// authenticate does the token exchange. Callers must hold mu.
func (m *MarzneshinClient) authenticate(ctx context.Context) error {
	form := map[string]string{
		"username": m.username,
		"password": m.password,
	}

	resp, err := m.client.PostForm(m.baseURL+"/api/admins/token", form)
	if err != nil {
		// Some deployments use the Marzban-compatible path.
		resp, err = m.client.PostForm(m.baseURL+"/api/admin/token", form)
	}
	if err != nil {
		return fmt.Errorf("marzneshin auth failed: %w", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(resp, &out); err != nil {
		return fmt.Errorf("marzneshin auth parse error: %w", err)
	}
	token := strings.TrimSpace(getString(out, "access_token"))
	if token == "" {
		return fmt.Errorf("marzneshin auth: no access_token in response")
	}

	m.token = token
	m.tokenTime = time.Now()
	m.client = m.client.WithBearerToken(token)
	return nil
}

func (m *MarzneshinClient) ensureAuth(ctx context.Context) (*httpclient.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" || time.Since(m.tokenTime) > 50*time.Minute {
		if err := m.authenticate(ctx); err != nil {
			return nil, err
		}
	}
	return m.client, nil
}

func (m *MarzneshinClient) GetUser(ctx context.Context, username string) (*PanelUser, error) {
	client, err := m.ensureAuth(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.Get(m.baseURL + "/api/users/" + username)
	if err != nil {
		return nil, fmt.Errorf("marzneshin get user failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("marzneshin parse user failed: %w", err)
	}
	if detail := strings.TrimSpace(getString(raw, "detail")); detail != "" {
		return nil, fmt.Errorf("marzneshin get user: %s", detail)
	}

	status := "active"
	if enabled, ok := raw["enabled"].(bool); ok && !enabled {
		status = "disabled"
	}
	if expired, ok := raw["expired"].(bool); ok && expired {
		status = "expired"
	}
	if dataLimit, used := toInt64(raw["data_limit"]), toInt64(raw["used_traffic"]); dataLimit > 0 && dataLimit-used <= 0 {
		status = "limited"
	}

	user := &PanelUser{
		Username:    strings.TrimSpace(getString(raw, "username")),
		Status:      status,
		DataLimit:   toInt64(raw["data_limit"]),
		UsedTraffic: toInt64(raw["used_traffic"]),
	}
	if t := parseAnyTime(raw["expire_date"]); t > 0 {
		user.ExpireTime = t
	}

	return user, nil
}

func (m *MarzneshinClient) setEnabled(ctx context.Context, username string, enabled bool) error {
	client, err := m.ensureAuth(ctx)
	if err != nil {
		return err
	}

	body, _ := json.Marshal(map[string]interface{}{
		"username": username,
		"enabled":  enabled,
	})
	resp, err := client.Put(m.baseURL+"/api/users/"+username, body)
	if err != nil {
		return fmt.Errorf("marzneshin modify user failed: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return fmt.Errorf("marzneshin modify parse failed: %w", err)
	}
	if detail := strings.TrimSpace(getString(raw, "detail")); detail != "" {
		return fmt.Errorf("marzneshin modify user: %s", detail)
	}
	return nil
}

func (m *MarzneshinClient) EnableUser(ctx context.Context, username string) error {
	return m.setEnabled(ctx, username, true)
}

func (m *MarzneshinClient) DisableUser(ctx context.Context, username string) error {
	return m.setEnabled(ctx, username, false)
}

func (m *MarzneshinClient) ResetTraffic(ctx context.Context, username string) error {
	client, err := m.ensureAuth(ctx)
	if err != nil {
		return err
	}
	_, err = client.Post(m.baseURL+"/api/users/"+username+"/reset", nil)
	return err
}

func parseAnyTime(v interface{}) int64 {
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	if s == "" || s == "<nil>" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		// Already a unix timestamp in seconds or milliseconds.
		if n > 1_000_000_000_000 {
			return n / 1000
		}
		return n
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		if p2, e2 := time.Parse("2006-01-02 15:04:05", s); e2 == nil {
			return p2.Unix()
		}
		return 0
	}
	return parsed.Unix()
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case float32:
		return int64(t)
	case int:
		return int64(t)
	case int64:
		return t
	case json.Number:
		n, _ := t.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n
	default:
		return 0
	}
}
