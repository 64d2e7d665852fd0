package game

import "testing"

func TestPriceForScarcity(t *testing.T) {
	r := testRules(t)
	tests := []struct {
		item  string
		stock int64
		want  int64
	}{
		{"grain", 800, 2},
		{"grain", 1, 6},
		{"grain", 100_000, 1},
		{"iron_sword", 20, 60},
		{"iron_sword", 0, 268},
	}
	for _, tc := range tests {
		if got := PriceFor(r, tc.item, tc.stock); got != tc.want {
			t.Fatalf("PriceFor(%s, %d) = %d, want %d", tc.item, tc.stock, got, tc.want)
		}
	}
}

func TestQuotedPricePrefersPostedPrice(t *testing.T) {
	r := testRules(t)
	posted := map[string]int64{"grain": 5, "bread": 0}
	if got := QuotedPrice(r, posted, "grain", 800); got != 5 {
		t.Fatalf("posted grain = %d, want 5", got)
	}
	if got := QuotedPrice(r, posted, "iron_sword", 20); got != 60 {
		t.Fatalf("unposted sword = %d, want scarcity price 60", got)
	}
	if got := QuotedPrice(r, nil, "grain", 1); got != 6 {
		t.Fatalf("no posted prices = %d, want 6", got)
	}
	if got := QuotedPrice(r, posted, "bread", 400); got != PriceFor(r, "bread", 400) {
		t.Fatalf("a zero posted price must fall back, got %d", got)
	}
}

func TestSellPriceAndSalesTax(t *testing.T) {
	r := testRules(t)
	if got := SellPrice(r, 10); got != 8 {
		t.Fatalf("sell price = %d, want 8", got)
	}
	if got := SellPrice(r, 7); got != 5 {
		t.Fatalf("sell price = %d, want 5", got)
	}
	tests := []struct {
		gross int64
		rate  int
		want  int64
	}{
		{100, 5, 5},
		{19, 5, 0},
		{100, 0, 0},
		{-5, 10, 0},
	}
	for _, tc := range tests {
		if got := SalesTax(tc.gross, tc.rate); got != tc.want {
			t.Fatalf("SalesTax(%d, %d) = %d, want %d", tc.gross, tc.rate, got, tc.want)
		}
	}
}

func TestIncomeTax(t *testing.T) {
	tests := []struct {
		gold int64
		rate int
		want int64
	}{
		{1000, 5, 50},
		{10_000, 5, 200},
		{0, 5, 0},
		{1000, 0, 0},
	}
	for _, tc := range tests {
		if got := IncomeTax(tc.gold, tc.rate, 200); got != tc.want {
			t.Fatalf("IncomeTax(%d, %d) = %d, want %d", tc.gold, tc.rate, got, tc.want)
		}
	}
	if got := IncomeTax(10_000, 5, 0); got != 500 {
		t.Fatalf("uncapped tax = %d, want 500", got)
	}
}

func TestForwardShare(t *testing.T) {
	if got := ForwardShare(1000, 0.10); got != 100 {
		t.Fatalf("forward = %d, want 100", got)
	}
	if got := ForwardShare(55, 0.10); got != 5 {
		t.Fatalf("forward = %d, want 5", got)
	}
	if got := ForwardShare(0, 0.10); got != 0 {
		t.Fatalf("forward = %d, want 0", got)
	}
}

func TestScoreDice(t *testing.T) {
	d := testRules(t).Dice
	tests := []struct {
		name              string
		one, two          int
		result            string
		payout, rake, net int64
	}{
		{"doubles", 3, 3, "doubles", 180, 20, 80},
		{"seven pushes", 3, 4, "push", 100, 0, 0},
		{"loss", 1, 2, "lose", 0, 10, -100},
	}
	for _, tc := range tests {
		got := ScoreDice(d, 100, tc.one, tc.two)
		if got.Result != tc.result || got.Payout != tc.payout || got.Rake != tc.rake || got.Net != tc.net {
			t.Fatalf("%s: got %+v", tc.name, got)
		}
	}
}
