package domain

import (
	"context"
	"errors"
)

// Type selects one of the maintained rankings.
type Type string

const (
	TypePoints        Type = "POINTS"
	TypeActivityCount Type = "ACTIVITY_COUNT"
)

var (
	ErrUnknownType = errors.New("unknown_ranking_type")
	// ErrStoreUnavailable marks ranked-set store failures so callers can
	// distinguish an outage from an absent member.
	ErrStoreUnavailable = errors.New("ranking_store_unavailable")
	ErrNotFound         = errors.New("ranking_member_not_found")
)

// Key returns the ranked-set key for the ranking type.
func (t Type) Key() string {
	switch t {
	case TypePoints:
		return "ranking:points"
	case TypeActivityCount:
		return "ranking:activity:count"
	default:
		return ""
	}
}

func (t Type) Valid() bool {
	return t == TypePoints || t == TypeActivityCount
}

// Entry is one ranked member. Rank is 1-based.
type Entry struct {
	UserID int64
	Score  int64
	Rank   int64
}

// Member is a score write for batch upserts.
type Member struct {
	UserID int64
	Score  int64
}

// Store is the ranked-set adapter.
type Store interface {
	UpsertScore(ctx context.Context, t Type, userID, score int64) error
	UpsertScores(ctx context.Context, t Type, members []Member) error
	Remove(ctx context.Context, t Type, userID int64) error
	TopN(ctx context.Context, t Type, n int64) ([]Entry, error)
	// RankAndScore returns the 1-based rank. ErrNotFound when the user is
	// not a member.
	RankAndScore(ctx context.Context, t Type, userID int64) (int64, int64, error)
	Card(ctx context.Context, t Type) (int64, error)
}

// Service is the ranking read path. It never falls back to the relational
// store: an unavailable ranked-set store surfaces as ErrStoreUnavailable.
type Service interface {
	TopN(ctx context.Context, t Type, n int64) ([]Entry, error)
	UserRank(ctx context.Context, t Type, userID int64) (Entry, error)
	TotalParticipants(ctx context.Context, t Type) (int64, error)
}

// SyncService rebuilds the ranked-set store from the relational truth.
type SyncService interface {
	FullSync(ctx context.Context) error
	IncrementalSync(ctx context.Context) error
	SyncUser(ctx context.Context, userID int64) error
}
