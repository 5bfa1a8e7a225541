package oracle_test

import (
	"math/big"
	"testing"

	"github.com/Calcifer1001/heist/internal/fixedpoint"
	"github.com/Calcifer1001/heist/internal/oracle"
)

// ============================================================================
// Test: asset prices
// ============================================================================

func TestOracle_MissingAsset(t *testing.T) {
	s := oracle.New()
	if _, ok := s.Price("near"); ok {
		t.Error("unpublished asset should not be found")
	}
}

func TestOracle_SetOverwrites(t *testing.T) {
	s := oracle.New()
	s.SetPrice("near", big.NewInt(3_000_000_000_000))
	s.SetPrice("near", big.NewInt(4_000_000_000_000))

	got, ok := s.Price("near")
	if !ok {
		t.Fatal("near should be found after SetPrice")
	}
	if got.Cmp(big.NewInt(4_000_000_000_000)) != 0 {
		t.Errorf("last write should win, got %s", got)
	}
}

func TestOracle_PricesSorted(t *testing.T) {
	s := oracle.New()
	s.SetPrice("eth", big.NewInt(2))
	s.SetPrice("btc", big.NewInt(1))
	s.SetPrice("near", big.NewInt(3))

	listed := s.Prices()
	if len(listed) != 3 {
		t.Fatalf("want 3 assets, got %d", len(listed))
	}
	want := []string{"btc", "eth", "near"}
	for i, ap := range listed {
		if ap.Asset != want[i] {
			t.Errorf("position %d: got %q, want %q", i, ap.Asset, want[i])
		}
	}
}

// ============================================================================
// Test: synthetic price
// ============================================================================

func TestOracle_SyntheticStartsAtScale(t *testing.T) {
	s := oracle.New()
	if s.SyntheticPrice().Cmp(fixedpoint.SyntheticScale) != 0 {
		t.Errorf("initial synthetic price should be %s, got %s",
			fixedpoint.SyntheticScale, s.SyntheticPrice())
	}
}

func TestOracle_AdvanceEpoch(t *testing.T) {
	s := oracle.New()
	got := s.AdvanceEpoch()
	want := big.NewInt(1_000_125_079_000)
	if got.Cmp(want) != 0 {
		t.Errorf("after one epoch got %s, want %s", got, want)
	}
	if s.SyntheticPrice().Cmp(want) != 0 {
		t.Errorf("advance should persist, state has %s", s.SyntheticPrice())
	}
}

// ============================================================================
// Test: snapshot round trip
// ============================================================================

func TestOracle_SnapshotRestore(t *testing.T) {
	s := oracle.New()
	s.SetPrice("near", big.NewInt(5_500_000_000_000))
	s.AdvanceEpoch()
	s.AdvanceEpoch()

	prices, synthetic := s.Snapshot()

	restored := oracle.New()
	if err := restored.Restore(prices, synthetic); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	got, ok := restored.Price("near")
	if !ok || got.Cmp(big.NewInt(5_500_000_000_000)) != 0 {
		t.Errorf("restored price wrong: %v %v", got, ok)
	}
	if restored.SyntheticPrice().Cmp(s.SyntheticPrice()) != 0 {
		t.Errorf("restored synthetic %s, want %s", restored.SyntheticPrice(), s.SyntheticPrice())
	}
}

func TestOracle_RestoreRejectsGarbage(t *testing.T) {
	s := oracle.New()
	if err := s.Restore(map[string]string{"near": "bogus"}, "1"); err == nil {
		t.Error("restore should reject an unparseable price")
	}
	if err := s.Restore(nil, "bogus"); err == nil {
		t.Error("restore should reject an unparseable synthetic price")
	}
}
