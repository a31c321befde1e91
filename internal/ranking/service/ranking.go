package service

import (
	"context"
	"errors"

	"github.com/gatherly/gatherly/internal/ranking/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ReadParams struct {
	fx.In

	Log   *zap.Logger
	Store domain.Store
}

type reader struct {
	log   *zap.Logger
	store domain.Store
}

// NewReader builds the ranking read path. Reads go straight to the ranked-set
// store; there is no relational fallback, so a store outage is reported to the
// caller instead of being papered over with a slow scan.
func NewReader(p ReadParams) (domain.Service, error) {
	if p.Log == nil || p.Store == nil {
		return nil, errors.New("log and store are required")
	}
	return &reader{log: p.Log.Named("ranking"), store: p.Store}, nil
}

func (r *reader) TopN(ctx context.Context, t domain.Type, n int64) ([]domain.Entry, error) {
	if !t.Valid() {
		return nil, domain.ErrUnknownType
	}
	entries, err := r.store.TopN(ctx, t, n)
	if err != nil {
		r.log.Error("ranking.top_n.failed", zap.String("type", string(t)), zap.Error(err))
		return nil, err
	}
	return entries, nil
}

func (r *reader) UserRank(ctx context.Context, t domain.Type, userID int64) (domain.Entry, error) {
	if !t.Valid() {
		return domain.Entry{}, domain.ErrUnknownType
	}
	rank, score, err := r.store.RankAndScore(ctx, t, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.log.Error("ranking.user_rank.failed",
				zap.String("type", string(t)),
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}
		return domain.Entry{}, err
	}
	return domain.Entry{UserID: userID, Score: score, Rank: rank}, nil
}

func (r *reader) TotalParticipants(ctx context.Context, t domain.Type) (int64, error) {
	if !t.Valid() {
		return 0, domain.ErrUnknownType
	}
	n, err := r.store.Card(ctx, t)
	if err != nil {
		r.log.Error("ranking.total_participants.failed", zap.String("type", string(t)), zap.Error(err))
		return 0, err
	}
	return n, nil
}
