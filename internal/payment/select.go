package payment

import (
	"fmt"

	"github.com/blockmart/blockmart-backend/pkg/config"
)

// SelectProcessor picks the live processor from the configured mode.
// Both clients are wired at startup; only the selected one is used.
func SelectProcessor(cfg config.PaymentsConfig, paypalClient paypalAPI, squareClient squareAPI) (Processor, error) {
	switch cfg.NormalizedMode() {
	case config.PaymentsModePayPal:
		return NewPayPalProcessor(paypalClient)
	case config.PaymentsModeSquare:
		return NewSquareProcessor(squareClient)
	default:
		return nil, fmt.Errorf("unknown payments mode %q", cfg.Mode)
	}
}
