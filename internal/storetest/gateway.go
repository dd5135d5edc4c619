package storetest

import (
	"context"
	"sync"

	"github.com/paysys/payment-service/internal/application"
)

// FakeGateway replays a scripted sequence of charge results. Once the
// script is exhausted it keeps returning the last result. All requests are
// recorded for assertions.
type FakeGateway struct {
	mu       sync.Mutex
	results  []application.ChargeResult
	Requests []application.ChargeRequest

	ChargeFn func(ctx context.Context, req application.ChargeRequest) (application.ChargeResult, error)
}

func NewFakeGateway(results ...application.ChargeResult) *FakeGateway {
	return &FakeGateway{results: results}
}

var _ application.GatewayClient = (*FakeGateway)(nil)

func (g *FakeGateway) Charge(ctx context.Context, req application.ChargeRequest) (application.ChargeResult, error) {
	if g.ChargeFn != nil {
		return g.ChargeFn(ctx, req)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.Requests = append(g.Requests, req)

	if len(g.results) == 0 {
		return application.ChargeResult{Success: true}, nil
	}
	result := g.results[0]
	if len(g.results) > 1 {
		g.results = g.results[1:]
	}
	return result, nil
}

func (g *FakeGateway) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Requests)
}
