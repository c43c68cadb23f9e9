package order

import (
	"context"
	"errors"

	"payhub-be/internal/logger"

	"go.uber.org/zap"
)

type Service interface {
	// FindOwned returns the order only when it belongs to userID.
	FindOwned(ctx context.Context, idOrNumber, userID string) (*Order, error)
	MarkAsPaid(ctx context.Context, orderID string) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) FindOwned(ctx context.Context, idOrNumber, userID string) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("order_ref", idOrNumber),
		zap.String("user_id", userID),
	)

	if idOrNumber == "" || userID == "" {
		return nil, ErrOrderNotFound
	}

	o, err := s.repo.GetByIDOrNumber(ctx, idOrNumber)
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			log.Error("failed to load order", zap.Error(err))
		}
		return nil, err
	}

	if o.UserID != userID {
		log.Warn("order ownership mismatch")
		return nil, ErrUnauthorized
	}

	return o, nil
}

func (s *service) MarkAsPaid(ctx context.Context, orderID string) error {
	o, err := s.repo.GetByIDOrNumber(ctx, orderID)
	if err != nil {
		return err
	}

	if o.Status == StatusPaid {
		logger.FromCtx(ctx).Info("order already marked as paid", zap.String("order_id", orderID))
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, o.ID, StatusPaid); err != nil {
		return err
	}

	logger.FromCtx(ctx).Info("order marked as paid", zap.String("order_id", o.ID))
	return nil
}
