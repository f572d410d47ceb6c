package main

import (
	"errors"
	"testing"
	"time"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/ingestion"
)

func TestParseFrom(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	cases := map[string]int64{
		"":                     now.Unix() - 86400,
		"1600000000":           1_600_000_000,
		"2024-03-01T00:00:00Z": 1_709_251_200,
	}
	for in, want := range cases {
		got, err := parseFrom(in, now)
		if err != nil {
			t.Fatalf("parseFrom(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("parseFrom(%q) = %d, want %d", in, got, want)
		}
	}

	if _, err := parseFrom("yesterday", now); err == nil {
		t.Error("Expected error for unparseable time")
	}
}

func TestSelectStreams(t *testing.T) {
	streams, err := selectStreams([]string{"BTC.BTC", "ETH.ETH"}, []string{domain.FamilySwaps, domain.FamilyRunePool})
	if err != nil {
		t.Fatalf("selectStreams failed: %v", err)
	}
	if len(streams) != 3 {
		t.Fatalf("Expected 3 streams, got %+v", streams)
	}
	for _, st := range streams {
		if st.Family != domain.FamilySwaps && st.Family != domain.FamilyRunePool {
			t.Errorf("Unexpected stream %+v", st)
		}
	}

	all, _ := selectStreams([]string{"BTC.BTC"}, nil)
	if len(all) != 4 {
		t.Errorf("Expected 4 streams, got %d", len(all))
	}

	if _, err := selectStreams(nil, []string{"candles"}); !errors.Is(err, ingestion.ErrUnknownFamily) {
		t.Errorf("Expected ErrUnknownFamily, got %v", err)
	}
}
