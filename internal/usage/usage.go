// Package usage implements the traffic accounting for reseller configs.
//
// A config's usage has two parts: the live counter synced from the remote
// panel, and the settled counter that accumulates everything preserved across
// resets. Their sum is monotonically non-decreasing across resets and
// soft-deletion, which is what keeps the reseller aggregate honest.
package usage

import "github.com/xshayank/vpnmarket-reseller/internal/models"

// Total returns the config's full consumed traffic: live plus settled bytes.
func Total(cfg *models.ResellerConfig) int64 {
	return cfg.UsageBytes + cfg.SettledUsageBytes
}

// Aggregate sums total usage over a reseller's configs and subtracts
// admin-forgiven bytes. Callers must pass the config set including
// soft-deleted rows, otherwise deletion would punch a hole in the account.
func Aggregate(configs []models.ResellerConfig, forgivenBytes int64) int64 {
	var sum int64
	for i := range configs {
		sum += Total(&configs[i])
	}
	sum -= forgivenBytes
	if sum < 0 {
		return 0
	}
	return sum
}

// Settle moves the live counter into the settled counter and zeroes the live
// one. Total is unchanged: a reset is an accounting transform, not a loss.
// Returns the number of bytes settled.
func Settle(cfg *models.ResellerConfig) int64 {
	settled := cfg.UsageBytes
	cfg.SettledUsageBytes += settled
	cfg.UsageBytes = 0
	return settled
}

// ZeroPanelCounters clears panel-specific usage counters kept in config meta.
// Eylandoo reports usage through used_traffic and data_used on its own API,
// so the local reset has to zero them in the same units the remote reset does.
func ZeroPanelCounters(cfg *models.ResellerConfig) {
	if cfg.PanelType != models.PanelTypeEylandoo {
		return
	}
	meta := cfg.MetaMap()
	meta["used_traffic"] = 0
	meta["data_used"] = 0
	cfg.SetMetaMap(meta)
}
