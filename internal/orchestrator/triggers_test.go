package orchestrator

import "testing"

func TestResolveSymbol(t *testing.T) {
	cases := []struct {
		text   string
		symbol string
		market string
	}{
		{"what is the BTC price?", "BTC", "crypto"},
		{"how much is bitcoin", "BTC", "crypto"},
		{"كم سعر البيتكوين؟", "BTC", "crypto"},
		{"سعر بيتكوين", "BTC", "crypto"},
		{"سعر الذهب اليوم", "XAU", "metals"},
		{"بكم الفضة", "XAG", "metals"},
		{"gold price today", "XAU", "metals"},
		{"price of $AAPL", "AAPL", ""},
		{"$tasi today", "TASI", "stocks"},
		{"WHAT is the price", "", ""},
		{"HELLO there", "", ""},
		{"no instrument here", "", ""},
	}
	for _, tc := range cases {
		symbol, market := resolveSymbol(tc.text)
		if symbol != tc.symbol || market != tc.market {
			t.Errorf("resolveSymbol(%q) = (%q, %q), want (%q, %q)",
				tc.text, symbol, market, tc.symbol, tc.market)
		}
	}
}

func TestDetectTriggersPriceNeedsSymbol(t *testing.T) {
	if trig := detectTriggers("WHAT is the price"); trig.price {
		t.Fatal("price trigger must not fire without a recognizable symbol")
	}
	if trig := detectTriggers("كم سعر البيتكوين؟"); !trig.price {
		t.Fatal("price trigger must fire for the definite-article form")
	}
}
