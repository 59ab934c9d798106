package domain

import "testing"

func TestPriceDefaultTiers(t *testing.T) {
	cases := []struct {
		chars int
		want  int64
	}{
		{0, 350},
		{1, 350},
		{3000, 350},
		{5000, 350},
		{5001, 350},
		{10000, 350},
		{10001, 500},
		{50000, 500},
		{50001, 800},
		{60000, 800},
		{10_000_000, 800},
	}
	for _, tc := range cases {
		got, err := Price(tc.chars)
		if err != nil {
			t.Fatalf("Price(%d) error = %v", tc.chars, err)
		}
		if got != tc.want {
			t.Fatalf("Price(%d) = %d, want %d", tc.chars, got, tc.want)
		}
	}
}

func TestPriceRejectsNegativeInput(t *testing.T) {
	_, err := Price(-1)
	if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPriceAppliesMinimumCharge(t *testing.T) {
	schedule := PricingSchedule{
		MinimumCharge: 350,
		Tiers: []PricingTier{
			{MaxChars: 1000, Price: 100},
			{MaxChars: 0, Price: 1000},
		},
	}
	got, err := schedule.Price(10)
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	if got != 350 {
		t.Fatalf("expected minimum charge 350, got %d", got)
	}
}

func TestDefaultPricingScheduleIsValid(t *testing.T) {
	if err := DefaultPricingSchedule().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestPricingScheduleValidateRejectsBadShapes(t *testing.T) {
	cases := map[string]PricingSchedule{
		"no tiers":        {MinimumCharge: 350},
		"closed top tier": {MinimumCharge: 350, Tiers: []PricingTier{{MaxChars: 10, Price: 350}}},
		"descending": {MinimumCharge: 350, Tiers: []PricingTier{
			{MaxChars: 100, Price: 350},
			{MaxChars: 50, Price: 500},
			{MaxChars: 0, Price: 800},
		}},
		"zero minimum": {Tiers: []PricingTier{{MaxChars: 0, Price: 800}}},
		"open tier before the last": {MinimumCharge: 350, Tiers: []PricingTier{
			{MaxChars: 0, Price: 350},
			{MaxChars: 10000, Price: 500},
			{MaxChars: 0, Price: 800},
		}},
		"negative bound": {MinimumCharge: 350, Tiers: []PricingTier{
			{MaxChars: -5, Price: 350},
			{MaxChars: 0, Price: 800},
		}},
	}
	for name, schedule := range cases {
		if err := schedule.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestDisplayAmount(t *testing.T) {
	if got := DisplayAmount(350, "cny"); got != "3.50 CNY" {
		t.Fatalf("DisplayAmount(350) = %q", got)
	}
	if got := DisplayAmount(800, ""); got != "8.00" {
		t.Fatalf("DisplayAmount(800) = %q", got)
	}
}
