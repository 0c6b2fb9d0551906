package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/russellmoss/guest-count-check/internal/commerce"
	"github.com/russellmoss/guest-count-check/internal/platform/requestctx"
)

// OrderLister reads one page of the upstream order list.
type OrderLister interface {
	ListOrders(ctx context.Context, params commerce.ListOrdersParams) (commerce.OrderPage, error)
}

type connectionService struct {
	lister OrderLister
}

var _ ConnectionService = (*connectionService)(nil)

// NewConnectionService builds the upstream connectivity check.
func NewConnectionService(lister OrderLister) (ConnectionService, error) {
	if lister == nil {
		return nil, errors.New("connection service: order lister is required")
	}
	return &connectionService{lister: lister}, nil
}

// Check requests a single unfiltered order and reports the upstream total.
func (s *connectionService) Check(ctx context.Context) ConnectionStatus {
	page, err := s.lister.ListOrders(ctx, commerce.ListOrdersParams{Page: 1, Limit: 1})
	if err != nil {
		requestctx.Logger(ctx).Warn("upstream connection check failed", zap.Error(err))
		return ConnectionStatus{Err: err}
	}
	return ConnectionStatus{Success: true, OrderCount: page.Total}
}
