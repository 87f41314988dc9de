package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xshayank/vpnmarket-reseller/internal/pkg/httpclient"
)

type xuiClient struct {
	baseURL        string
	username       string
	password       string
	apiBase        string
	defaultInbound int
	client         *httpclient.Client
}

// NewXUIClient builds a client for 3x-ui style panels. XUI has no token API;
// it keeps a session cookie, so every operation re-logs-in first.
func NewXUIClient(baseURL, username, password, inboundID string) PanelClient {
	id, _ := strconv.Atoi(strings.TrimSpace(inboundID))
	if id <= 0 {
		id = 1
	}
	return &xuiClient{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		username:       strings.TrimSpace(username),
		password:       password,
		apiBase:        "/panel/api/inbounds",
		defaultInbound: id,
		client:         httpclient.New().WithTimeout(30*time.Second).WithInsecureSkipVerify().WithHeader("Accept", "application/json"),
	}
}

func (x *xuiClient) PanelType() string { return "xui" }

func (x *xuiClient) Authenticate(ctx context.Context) error {
	_, err := x.client.Raw().R().
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"username": x.username,
			"password": x.password,
		}).
		Post(x.baseURL + "/login")
	if err != nil {
		return fmt.Errorf("xui auth failed: %w", err)
	}
	return nil
}

func (x *xuiClient) GetUser(ctx context.Context, username string) (*PanelUser, error) {
	if err := x.Authenticate(ctx); err != nil {
		return nil, err
	}
	row, err := x.fetchClientTraffic(username)
	if err != nil {
		return nil, err
	}
	return x.toPanelUser(row), nil
}

func (x *xuiClient) setEnabled(ctx context.Context, username string, enable bool) error {
	if err := x.Authenticate(ctx); err != nil {
		return err
	}
	current, err := x.fetchClientTraffic(username)
	if err != nil {
		return err
	}

	inboundID := int(toInt64(current["inboundId"]))
	if inboundID <= 0 {
		inboundID = x.defaultInbound
	}
	clientID := strings.TrimSpace(fmt.Sprintf("%v", current["id"]))
	if clientID == "" || clientID == "<nil>" {
		clientID = strings.TrimSpace(fmt.Sprintf("%v", current["clientId"]))
	}

	settings := map[string]interface{}{
		"clients": []map[string]interface{}{
			{
				"id":         current["id"],
				"flow":       current["flow"],
				"email":      current["email"],
				"totalGB":    current["total"],
				"expiryTime": current["expiryTime"],
				"enable":     enable,
				"subId":      current["subId"],
			},
		},
		"decryption": "none",
		"fallbacks":  []interface{}{},
	}
	settingsJSON, _ := json.Marshal(settings)
	payload := map[string]interface{}{
		"id":       inboundID,
		"settings": string(settingsJSON),
	}

	resp, err := x.client.Raw().R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(x.baseURL + x.apiBase + "/updateClient/" + clientID)
	if err != nil {
		return fmt.Errorf("xui modify user failed: %w", err)
	}
	var raw map[string]interface{}
	_ = json.Unmarshal(resp.Body(), &raw)
	if ok, _ := raw["success"].(bool); !ok {
		return fmt.Errorf("xui modify rejected")
	}
	return nil
}

func (x *xuiClient) EnableUser(ctx context.Context, username string) error {
	return x.setEnabled(ctx, username, true)
}

func (x *xuiClient) DisableUser(ctx context.Context, username string) error {
	return x.setEnabled(ctx, username, false)
}

func (x *xuiClient) ResetTraffic(ctx context.Context, username string) error {
	if err := x.Authenticate(ctx); err != nil {
		return err
	}
	current, err := x.fetchClientTraffic(username)
	if err != nil {
		return err
	}
	inboundID := int(toInt64(current["inboundId"]))
	if inboundID <= 0 {
		inboundID = x.defaultInbound
	}
	path := fmt.Sprintf("%s%s/%d/resetClientTraffic/%s", x.baseURL, x.apiBase, inboundID, username)
	_, err = x.client.Raw().R().Post(path)
	return err
}

func (x *xuiClient) fetchClientTraffic(username string) (map[string]interface{}, error) {
	primaryPath := x.baseURL + x.apiBase + "/getClientTraffics/" + username
	resp, err := x.client.Raw().R().Get(primaryPath)
	if err == nil {
		var raw map[string]interface{}
		if uErr := json.Unmarshal(resp.Body(), &raw); uErr == nil {
			if ok, _ := raw["success"].(bool); ok {
				if obj, ok := raw["obj"].(map[string]interface{}); ok && len(obj) > 0 {
					return obj, nil
				}
			}
		}
	}

	// Fallback for panels that only expose the full inbound list.
	resp, err = x.client.Raw().R().Get(x.baseURL + x.apiBase)
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, err
	}
	items, _ := raw["obj"].([]interface{})
	for _, item := range items {
		inbound, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		settingsStr := strings.TrimSpace(fmt.Sprintf("%v", inbound["settings"]))
		var settings map[string]interface{}
		_ = json.Unmarshal([]byte(settingsStr), &settings)
		clients, _ := settings["clients"].([]interface{})
		stats, _ := inbound["clientStats"].([]interface{})

		var clientItem map[string]interface{}
		for _, c := range clients {
			cm, ok := c.(map[string]interface{})
			if !ok {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(fmt.Sprintf("%v", cm["email"])), username) {
				clientItem = cm
				break
			}
		}
		if len(clientItem) == 0 {
			continue
		}

		row := map[string]interface{}{
			"inboundId":  inbound["id"],
			"id":         clientItem["id"],
			"email":      clientItem["email"],
			"flow":       clientItem["flow"],
			"subId":      clientItem["subId"],
			"expiryTime": clientItem["expiryTime"],
			"enable":     clientItem["enable"],
			"total":      clientItem["totalGB"],
		}
		for _, st := range stats {
			sm, ok := st.(map[string]interface{})
			if !ok {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(fmt.Sprintf("%v", sm["email"])), username) {
				row["up"] = sm["up"]
				row["down"] = sm["down"]
				break
			}
		}
		return row, nil
	}
	return nil, fmt.Errorf("user not found")
}

func (x *xuiClient) toPanelUser(row map[string]interface{}) *PanelUser {
	expiryMS := toInt64(row["expiryTime"])
	expire := int64(0)
	if expiryMS > 0 {
		expire = expiryMS / 1000
	}
	status := "active"
	if !boolFromAny(row["enable"], true) {
		status = "disabled"
	}
	total := toInt64(row["total"])
	used := toInt64(row["up"]) + toInt64(row["down"])
	if total > 0 && total-used <= 0 {
		status = "limited"
	}
	if expire > 0 && expire <= time.Now().Unix() {
		status = "expired"
	}

	return &PanelUser{
		Username:    strings.TrimSpace(fmt.Sprintf("%v", row["email"])),
		Status:      status,
		DataLimit:   total,
		UsedTraffic: used,
		ExpireTime:  expire,
	}
}

func boolFromAny(v interface{}, defaultVal bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultVal
}
