package entities

import (
	"sort"
	"time"
	"unicode/utf8"

	domainerrors "voteledger/contexts/community-voting/voting-ledger/domain/errors"
)

// MaxNameLength is measured in runes.
const MaxNameLength = 30

// Entity is a registrable, votable named item. VoteCount is always derived
// from the per-entity counter when read back from a store.
type Entity struct {
	Name         string
	VoteCount    uint64
	Creator      string
	Sequence     uint64
	RegisteredAt time.Time
}

// VoteRecord is the durable fact that Voter voted for EntityName. Records are
// never retracted, including after the entity is removed.
type VoteRecord struct {
	Voter      string
	EntityName string
	VotedAt    time.Time
}

type LedgerMeta struct {
	Admin         string
	TotalEntities uint64
	InitializedAt time.Time
}

func (m LedgerMeta) Initialized() bool {
	return m.Admin != ""
}

type Stats struct {
	TotalAnimals uint64
	TotalVotes   uint64
	HighestVotes uint64
}

func (s Stats) AsMap() map[string]uint64 {
	return map[string]uint64{
		"total_animals": s.TotalAnimals,
		"total_votes":   s.TotalVotes,
		"highest_votes": s.HighestVotes,
	}
}

// ValidateName applies registration rules. Names are compared exactly, so no
// trimming or case folding happens here.
func ValidateName(name string) error {
	length := utf8.RuneCountInString(name)
	if length == 0 {
		return domainerrors.ErrNameEmpty
	}
	if length > MaxNameLength {
		return domainerrors.ErrNameTooLong
	}
	return nil
}

// Rank orders entities by vote count descending. Ties keep registration order.
func Rank(items []Entity) []Entity {
	ranked := append([]Entity(nil), items...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].VoteCount == ranked[j].VoteCount {
			return ranked[i].Sequence < ranked[j].Sequence
		}
		return ranked[i].VoteCount > ranked[j].VoteCount
	})
	return ranked
}

func SumVotes(items []Entity) uint64 {
	var total uint64
	for _, item := range items {
		total += item.VoteCount
	}
	return total
}
