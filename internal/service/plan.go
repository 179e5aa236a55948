// Package service contains the business logic layer of the daemon.
package service

import (
	"context"
	"log/slog"

	"github.com/cliptray/cliptrayd/internal/cloud"
	"github.com/cliptray/cliptrayd/internal/model"
	"github.com/cliptray/cliptrayd/internal/repository"
)

// PlanService resolves the subscription tier for the current user. Billing
// events are fetched from the payment authority and cached locally so plan
// checks keep working offline.
type PlanService struct {
	payments  repository.PaymentRepository
	authority cloud.PaymentAuthority
	logger    *slog.Logger
}

func NewPlanService(payments repository.PaymentRepository, authority cloud.PaymentAuthority, logger *slog.Logger) *PlanService {
	return &PlanService{
		payments:  payments,
		authority: authority,
		logger:    logger,
	}
}

// PlanFor returns the tier for a Firebase identity from the local cache.
func (s *PlanService) PlanFor(ctx context.Context, firebaseUID string) (model.Plan, error) {
	active, err := s.payments.HasActivePlan(ctx, firebaseUID)
	if err != nil {
		return model.PlanFree, err
	}
	if active {
		return model.PlanPro, nil
	}
	return model.PlanFree, nil
}

// CheckPayment answers the polled "has the payment landed yet" question
// against the authority itself, since the local cache only fills on refresh.
// No state is written; an unreachable authority falls back to the cache.
func (s *PlanService) CheckPayment(ctx context.Context, firebaseUID string) (model.Plan, error) {
	if s.authority != nil {
		records, err := s.authority.Payments(ctx, firebaseUID)
		if err == nil {
			for _, rec := range records {
				if model.PaymentStatus(rec.Status) == model.PaymentPaid {
					return model.PlanPro, nil
				}
			}
			return model.PlanFree, nil
		}
		s.logger.Debug("payment check fell back to cache", "error", err)
	}
	return s.PlanFor(ctx, firebaseUID)
}

// Refresh pulls the billing events from the payment authority into the local
// cache. Failures are logged and swallowed; the cached state keeps serving.
func (s *PlanService) Refresh(ctx context.Context, firebaseUID string) {
	if s.authority == nil {
		return
	}
	records, err := s.authority.Payments(ctx, firebaseUID)
	if err != nil {
		s.logger.Warn("payment refresh failed", "error", err)
		return
	}

	existing, err := s.payments.ListByUser(ctx, firebaseUID)
	if err != nil {
		s.logger.Warn("listing cached payments failed", "error", err)
		return
	}
	known := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		known[p.Reference] = struct{}{}
	}

	for _, rec := range records {
		if _, ok := known[rec.Reference]; ok {
			continue
		}
		payment := &model.Payment{
			FirebaseUID: firebaseUID,
			Amount:      rec.Amount,
			Currency:    rec.Currency,
			Status:      model.PaymentStatus(rec.Status),
			Reference:   rec.Reference,
			CreatedAt:   rec.CreatedAt,
		}
		if err := s.payments.Record(ctx, payment); err != nil {
			s.logger.Warn("caching payment failed", "reference", rec.Reference, "error", err)
		}
	}
}
