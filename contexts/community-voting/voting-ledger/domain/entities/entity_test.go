package entities

import (
	"errors"
	"strings"
	"testing"

	domainerrors "voteledger/contexts/community-voting/voting-ledger/domain/errors"
)

func TestValidateNameBoundaries(t *testing.T) {
	if err := ValidateName(""); !errors.Is(err, domainerrors.ErrNameEmpty) {
		t.Fatalf("expected ErrNameEmpty, got %v", err)
	}
	if err := ValidateName(strings.Repeat("X", MaxNameLength)); err != nil {
		t.Fatalf("expected 30 chars to be accepted, got %v", err)
	}
	if err := ValidateName(strings.Repeat("X", MaxNameLength+1)); !errors.Is(err, domainerrors.ErrNameTooLong) {
		t.Fatalf("expected ErrNameTooLong, got %v", err)
	}
}

func TestValidateNameCountsRunes(t *testing.T) {
	// 30 two-byte runes are 60 bytes but still within the limit.
	if err := ValidateName(strings.Repeat("ö", MaxNameLength)); err != nil {
		t.Fatalf("expected multibyte name to be accepted, got %v", err)
	}
	if err := ValidateName(" "); err != nil {
		t.Fatalf("whitespace is a valid name, got %v", err)
	}
}

func TestRankOrdersByVotesThenRegistration(t *testing.T) {
	ranked := Rank([]Entity{
		{Name: "Lion", VoteCount: 1, Sequence: 1},
		{Name: "Tiger", VoteCount: 3, Sequence: 2},
		{Name: "Bear", VoteCount: 1, Sequence: 3},
		{Name: "Wolf", VoteCount: 1, Sequence: 0},
	})
	got := make([]string, 0, len(ranked))
	for _, item := range ranked {
		got = append(got, item.Name)
	}
	if strings.Join(got, ",") != "Tiger,Wolf,Lion,Bear" {
		t.Fatalf("unexpected ranking %v", got)
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i-1].VoteCount < ranked[i].VoteCount {
			t.Fatalf("ranking is not non-increasing at %d", i)
		}
	}
}

func TestStatsAsMap(t *testing.T) {
	stats := Stats{TotalAnimals: 2, TotalVotes: 5, HighestVotes: 4}.AsMap()
	if stats["total_animals"] != 2 || stats["total_votes"] != 5 || stats["highest_votes"] != 4 {
		t.Fatalf("unexpected stats map %v", stats)
	}
}
