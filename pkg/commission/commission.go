package commission

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/entrenaapp/entrena-backend/pkg/config"
)

// Calculator computes the marketplace fee for a purchase total. The
// schedule is opaque to callers; the preference builder enforces the
// 0 <= fee < total invariant regardless of what a calculator returns.
type Calculator interface {
	Fee(total decimal.Decimal) decimal.Decimal
}

type scheduleCalculator struct {
	rate    decimal.Decimal
	minimum decimal.Decimal
}

// NewCalculator builds the configured percentage-plus-minimum schedule.
func NewCalculator(cfg config.CommissionConfig) (Calculator, error) {
	if cfg.PercentBps < 0 {
		return nil, fmt.Errorf("commission percent bps cannot be negative, got %d", cfg.PercentBps)
	}

	minimum := decimal.Zero
	if cfg.Minimum != "" {
		parsed, err := decimal.NewFromString(cfg.Minimum)
		if err != nil {
			return nil, fmt.Errorf("parsing commission minimum %q: %w", cfg.Minimum, err)
		}
		if parsed.IsNegative() {
			return nil, fmt.Errorf("commission minimum cannot be negative, got %s", parsed)
		}
		minimum = parsed
	}

	return &scheduleCalculator{
		rate:    decimal.NewFromInt(int64(cfg.PercentBps)).Div(decimal.NewFromInt(10000)),
		minimum: minimum,
	}, nil
}

func (c *scheduleCalculator) Fee(total decimal.Decimal) decimal.Decimal {
	fee := total.Mul(c.rate).RoundBank(2)
	if fee.LessThan(c.minimum) {
		fee = c.minimum
	}
	return fee
}
