package panel

import "context"

// PanelUser is the slice of remote account state the reconciler cares about:
// enable state and usage numbers. Everything else a panel returns is opaque.
type PanelUser struct {
	Username    string `json:"username"`
	Status      string `json:"status"` // active, disabled, limited, expired
	DataLimit   int64  `json:"data_limit"`
	UsedTraffic int64  `json:"used_traffic"`
	ExpireTime  int64  `json:"expire_time"`
}

// PanelClient is the uniform surface over the remote VPN panel APIs.
// Each panel family implements this with its own login/session semantics.
type PanelClient interface {
	// Authenticate logs in and stores the auth token/session.
	Authenticate(ctx context.Context) error

	// GetUser fetches a user's state and usage by remote username.
	GetUser(ctx context.Context, username string) (*PanelUser, error)

	// EnableUser enables a user account.
	EnableUser(ctx context.Context, username string) error

	// DisableUser disables a user account.
	DisableUser(ctx context.Context, username string) error

	// ResetTraffic zeroes the panel-side usage counter for a user.
	ResetTraffic(ctx context.Context, username string) error

	// PanelType returns the panel type identifier.
	PanelType() string
}
