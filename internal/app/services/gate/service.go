package gate

import (
	"context"

	"github.com/plusmaps/atlas/internal/app/storage"
	"github.com/plusmaps/atlas/pkg/logger"
)

// Service answers block checks and records per-user activity. It wraps the
// activity store with the gate's forgiving semantics: a store that cannot
// answer never turns into a caller-visible failure.
type Service struct {
	store storage.ActivityStore
	log   *logger.Logger
}

// New constructs a gate service.
func New(store storage.ActivityStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("gate")
	}
	return &Service{store: store, log: log}
}

// IsBlocked reports whether the user is on the block list. Absence of
// information means not blocked: store failures are logged and collapse to
// false rather than rejecting the request.
func (s *Service) IsBlocked(ctx context.Context, userID string) bool {
	blocked, err := s.store.IsBlocked(ctx, userID)
	if err != nil {
		s.log.WithField("user_id", userID).WithError(err).Warn("block check failed, allowing request")
		return false
	}
	return blocked
}

// RecordRequest logs an inbound request for the user. Fire and forget.
func (s *Service) RecordRequest(ctx context.Context, userID string) {
	if err := s.store.RecordRequest(ctx, userID); err != nil {
		s.log.WithField("user_id", userID).WithError(err).Debug("request log write failed")
	}
}

// RecordResponse logs an outbound response for the user. Fire and forget.
func (s *Service) RecordResponse(ctx context.Context, userID string) {
	if err := s.store.RecordResponse(ctx, userID); err != nil {
		s.log.WithField("user_id", userID).WithError(err).Debug("response log write failed")
	}
}
