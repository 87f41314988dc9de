package panel

import (
	"fmt"
	"strings"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
)

// PanelFactory creates a PanelClient for a panel record. The panel type set
// is closed; unknown types are rejected here, at the boundary, instead of
// deep inside a call chain.
func PanelFactory(p *models.Panel) (PanelClient, error) {
	switch strings.ToLower(strings.TrimSpace(p.Type)) {
	case models.PanelTypeMarzban:
		if p.Username == "" || p.Password == "" {
			return nil, fmt.Errorf("panel %q: missing marzban credentials", p.Name)
		}
		return NewMarzbanClient(p.URL, p.Username, p.Password), nil
	case models.PanelTypeMarzneshin:
		if p.Username == "" || p.Password == "" {
			return nil, fmt.Errorf("panel %q: missing marzneshin credentials", p.Name)
		}
		return NewMarzneshinClient(p.URL, p.Username, p.Password), nil
	case models.PanelTypeXUI:
		if p.Username == "" || p.Password == "" {
			return nil, fmt.Errorf("panel %q: missing xui credentials", p.Name)
		}
		return NewXUIClient(p.URL, p.Username, p.Password, p.InboundID), nil
	case models.PanelTypeEylandoo:
		apiKey := p.APIKey
		if apiKey == "" {
			apiKey = p.Password
		}
		if apiKey == "" {
			return nil, fmt.Errorf("panel %q: missing eylandoo api key", p.Name)
		}
		return NewEylandooClient(p.URL, apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported panel type: %s", p.Type)
	}
}
