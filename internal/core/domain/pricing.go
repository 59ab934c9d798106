package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinimumCharge is the floor applied to every tier, in minor currency units.
const MinimumCharge int64 = 350

// PricingTier covers character counts up to and including MaxChars.
// A zero MaxChars marks the open-ended top tier.
type PricingTier struct {
	MaxChars int   `json:"max_chars" yaml:"max_chars"`
	Price    int64 `json:"price" yaml:"price"`
}

type PricingSchedule struct {
	MinimumCharge int64         `json:"minimum_charge" yaml:"minimum_charge"`
	Tiers         []PricingTier `json:"tiers" yaml:"tiers"`
}

func DefaultPricingSchedule() PricingSchedule {
	return PricingSchedule{
		MinimumCharge: MinimumCharge,
		Tiers: []PricingTier{
			{MaxChars: 5000, Price: 350},
			{MaxChars: 10000, Price: 350},
			{MaxChars: 50000, Price: 500},
			{MaxChars: 0, Price: 800},
		},
	}
}

// Validate checks that tiers ascend strictly and end with an open tier.
func (s PricingSchedule) Validate() error {
	if len(s.Tiers) == 0 {
		return errors.New("pricing schedule has no tiers")
	}
	if s.MinimumCharge <= 0 {
		return errors.New("minimum charge must be positive")
	}
	prev := -1
	for i, tier := range s.Tiers {
		last := i == len(s.Tiers)-1
		if tier.Price < 0 {
			return fmt.Errorf("tier %d: negative price", i)
		}
		if last {
			if tier.MaxChars != 0 {
				return fmt.Errorf("tier %d: last tier must be open-ended", i)
			}
			continue
		}
		if tier.MaxChars <= 0 {
			return fmt.Errorf("tier %d: only the last tier may be open-ended", i)
		}
		if tier.MaxChars <= prev {
			return fmt.Errorf("tier %d: bounds must ascend", i)
		}
		prev = tier.MaxChars
	}
	return nil
}

// Price maps a character count to a cost in minor currency units.
func (s PricingSchedule) Price(charCount int) (int64, error) {
	if charCount < 0 {
		return 0, WrapError(ErrInvalidInput, "price", fmt.Errorf("negative char count %d", charCount))
	}
	price := s.Tiers[len(s.Tiers)-1].Price
	for _, tier := range s.Tiers {
		if tier.MaxChars == 0 || charCount <= tier.MaxChars {
			price = tier.Price
			break
		}
	}
	if price < s.MinimumCharge {
		price = s.MinimumCharge
	}
	return price, nil
}

// Price applies the default schedule.
func Price(charCount int) (int64, error) {
	return DefaultPricingSchedule().Price(charCount)
}

// DisplayAmount renders minor units as a major-unit amount, e.g. "3.50 CNY".
func DisplayAmount(amount int64, currency string) string {
	value := decimal.New(amount, -2).StringFixed(2)
	if currency == "" {
		return value
	}
	return value + " " + strings.ToUpper(currency)
}
