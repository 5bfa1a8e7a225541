package feed_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Calcifer1001/heist/internal/contract"
	"github.com/Calcifer1001/heist/internal/feed"
)

// ============================================================================
// Test: payload parsing
// ============================================================================

func TestParsePriceUpdate(t *testing.T) {
	update, err := feed.ParsePriceUpdate([]byte(`{"asset":"near","price":"5230000000000"}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if update.Asset != "near" {
		t.Errorf("asset: got %s, want near", update.Asset)
	}
	want, _ := new(big.Int).SetString("5230000000000", 10)
	if update.Price.Cmp(want) != 0 {
		t.Errorf("price: got %s, want %s", update.Price, want)
	}
}

func TestParsePriceUpdate_Invalid(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"bad json", `{`},
		{"missing asset", `{"price":"100"}`},
		{"bad price", `{"asset":"near","price":"1.5"}`},
		{"negative price", `{"asset":"near","price":"-1"}`},
		{"numeric price", `{"asset":"near","price":100}`},
	}
	for _, tc := range cases {
		if _, err := feed.ParsePriceUpdate([]byte(tc.data)); err == nil {
			t.Errorf("%s: parse should fail", tc.name)
		}
	}
}

func TestParseEpochAdvance(t *testing.T) {
	if _, err := feed.ParseEpochAdvance(nil); err != nil {
		t.Errorf("empty body should parse: %v", err)
	}
	if _, err := feed.ParseEpochAdvance([]byte(`{}`)); err != nil {
		t.Errorf("empty object should parse: %v", err)
	}
	if _, err := feed.ParseEpochAdvance([]byte(`garbage`)); err == nil {
		t.Error("garbage body should fail")
	}
}

func TestSubjectClassification(t *testing.T) {
	if !feed.IsPriceSubject("heist.prices.near") {
		t.Error("heist.prices.near should be a price subject")
	}
	if !feed.IsEpochSubject("heist.epochs.advance") {
		t.Error("heist.epochs.advance should be an epoch subject")
	}
	if feed.IsPriceSubject("heist.epochs.advance") {
		t.Error("epoch subject misclassified as price")
	}
}

// ============================================================================
// Test: runner applies messages
// ============================================================================

func TestRunner_AppliesPriceUpdate(t *testing.T) {
	l := contract.New(contract.Config{Owner: "owner", Logger: zerolog.Nop()})

	msgChan := make(chan feed.RawMessage, 1)
	runner := feed.NewRunner(l, msgChan, nil, zerolog.Nop())

	acked := false
	msgChan <- feed.RawMessage{
		Subject: "heist.prices.near",
		Data:    []byte(`{"asset":"near","price":"4200000000000"}`),
		AckFunc: func() { acked = true },
		NakFunc: func() {},
	}
	close(msgChan)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("runner failed: %v", err)
	}

	if !acked {
		t.Error("applied message should be acked")
	}
	price, err := l.Price("near")
	if err != nil {
		t.Fatalf("price not applied: %v", err)
	}
	want, _ := new(big.Int).SetString("4200000000000", 10)
	if price.Cmp(want) != 0 {
		t.Errorf("price %s, want %s", price, want)
	}
}

func TestRunner_AppliesEpochAdvance(t *testing.T) {
	l := contract.New(contract.Config{Owner: "owner", Logger: zerolog.Nop()})
	before := l.SyntheticPrice()

	msgChan := make(chan feed.RawMessage, 1)
	runner := feed.NewRunner(l, msgChan, nil, zerolog.Nop())

	msgChan <- feed.RawMessage{
		Subject: "heist.epochs.advance",
		Data:    nil,
		AckFunc: func() {},
		NakFunc: func() {},
	}
	close(msgChan)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("runner failed: %v", err)
	}

	if l.SyntheticPrice().Cmp(before) <= 0 {
		t.Error("epoch message should advance the synthetic price")
	}
}

func TestRunner_AcksMalformedMessage(t *testing.T) {
	l := contract.New(contract.Config{Owner: "owner", Logger: zerolog.Nop()})

	msgChan := make(chan feed.RawMessage, 1)
	runner := feed.NewRunner(l, msgChan, nil, zerolog.Nop())

	acked := false
	msgChan <- feed.RawMessage{
		Subject: "heist.prices.near",
		Data:    []byte(`not json`),
		AckFunc: func() { acked = true },
		NakFunc: func() { t.Error("poison message should not be naked") },
	}
	close(msgChan)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("runner failed: %v", err)
	}
	if !acked {
		t.Error("poison message should be acked to stop redelivery")
	}
	if len(l.CurrentPrices()) != 0 {
		t.Error("malformed message should not write a price")
	}
}
