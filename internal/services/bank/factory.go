package bank

import (
	"context"
	"fmt"

	"gatepass/config"
	"gatepass/internal/services/bank/jdb"
)

// New builds the configured gateway. Only JDB is wired today; the
// provider switch is where the next bank integration lands.
func New(ctx context.Context, cfg *config.GatewayConfig) (Gateway, error) {
	switch cfg.Provider {
	case "jdb":
		return jdb.New(ctx, &jdb.Config{
			BaseURL:    cfg.BaseURL,
			PartnerID:  cfg.PartnerID,
			ClientID:   cfg.ClientID,
			ClientKey:  cfg.ClientKey,
			HMACKey:    cfg.HMACKey,
			MerchantID: cfg.MerchantID,

			PNSubKey:    cfg.PNSubKey,
			PNSubSecret: cfg.PNSubSecret,
			PNUUID:      cfg.PNUUID,
			PNChannel:   cfg.PNChannel,
			PNCipherKey: cfg.PNCipherKey,
		})

	default:
		return nil, fmt.Errorf("unsupported gateway provider: %s", cfg.Provider)
	}
}
