package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidRate = errors.New("pricing: invalid rate")

// minorPerMajor converts major currency units to minor units.
var minorPerMajor = decimal.NewFromInt(100)

// Service prices accumulated call minutes at a fixed per-minute rate.
//
// Contract:
// - Pure calculation; no provider or payment SDK calls.
// - amount_minor = round(total_minutes * rate * 100), half away from zero.
type Service struct {
	rate     decimal.Decimal
	currency string
}

func NewService(ratePerMinute decimal.Decimal, currency string) (*Service, error) {
	if !ratePerMinute.IsPositive() {
		return nil, ErrInvalidRate
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return nil, errors.New("pricing: currency is required")
	}
	return &Service{rate: ratePerMinute, currency: currency}, nil
}

func (s *Service) Currency() string { return s.currency }

func (s *Service) RatePerMinute() decimal.Decimal { return s.rate }

// Price computes the charge for totalMinutes.
func (s *Service) Price(totalMinutes decimal.Decimal) Charge {
	return Charge{
		Currency:      s.currency,
		TotalMinutes:  totalMinutes,
		RatePerMinute: s.rate,
		AmountMinor:   ChargeMinor(totalMinutes, s.rate),
	}
}

// ChargeMinor returns round(totalMinutes * ratePerMinute * 100). Negative
// totals price to zero.
func ChargeMinor(totalMinutes, ratePerMinute decimal.Decimal) int64 {
	if !totalMinutes.IsPositive() || !ratePerMinute.IsPositive() {
		return 0
	}
	return totalMinutes.Mul(ratePerMinute).Mul(minorPerMajor).Round(0).IntPart()
}

// SumMinutes adds durations exactly.
func SumMinutes(durations ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, d := range durations {
		total = total.Add(d)
	}
	return total
}
