// Package views serves the read-only dashboard views. Each fetcher is
// mode-aware: MOCK is answered from the local fixture dataset without
// touching the network, LIVE goes through the API client and returns
// the normalized shape. Views are fetched on demand, not polled.
package views

import (
	"context"

	"github.com/swap2you/chakraops/internal/api"
	"github.com/swap2you/chakraops/internal/fixtures"
	"github.com/swap2you/chakraops/internal/mode"
)

type Service struct {
	client *api.Client
	modes  *mode.Manager
	mock   *fixtures.Dataset
}

func New(client *api.Client, modes *mode.Manager, mock *fixtures.Dataset) *Service {
	return &Service{client: client, modes: modes, mock: mock}
}

func (s *Service) Universe(ctx context.Context) (api.Universe, error) {
	if !s.modes.IsLive() {
		return s.mock.Universe(), nil
	}
	return s.client.Universe(ctx)
}

func (s *Service) DailyOverview(ctx context.Context) (api.DailyOverview, error) {
	if !s.modes.IsLive() {
		return s.mock.DailyOverview(), nil
	}
	return s.client.DailyOverview(ctx)
}

// Positions returns a bare array; an empty book is an empty slice,
// never nil.
func (s *Service) Positions(ctx context.Context) ([]map[string]any, error) {
	if !s.modes.IsLive() {
		return s.mock.Positions(), nil
	}
	return s.client.Positions(ctx)
}

func (s *Service) Alerts(ctx context.Context) (api.Alerts, error) {
	if !s.modes.IsLive() {
		return s.mock.Alerts(), nil
	}
	return s.client.Alerts(ctx)
}

func (s *Service) DecisionHistory(ctx context.Context) ([]map[string]any, error) {
	if !s.modes.IsLive() {
		return s.mock.DecisionHistory(), nil
	}
	return s.client.DecisionHistory(ctx)
}

func (s *Service) SymbolDiagnostics(ctx context.Context, symbol string) (api.SymbolDiagnostics, error) {
	if !s.modes.IsLive() {
		return s.mock.SymbolDiagnostics(symbol), nil
	}
	return s.client.SymbolDiagnostics(ctx, symbol)
}

// OpsState bundles the fixture answers for the ops resources so MOCK
// mode has something to render where the watchers are gated.
type OpsState struct {
	OpsStatus    api.OpsStatus    `json:"ops_status"`
	MarketStatus api.MarketStatus `json:"market_status"`
	DataHealth   api.DataHealth   `json:"data_health"`
	Snapshot     api.Snapshot     `json:"snapshot"`
}

// MockOpsState is only meaningful while the data mode is MOCK.
func (s *Service) MockOpsState() OpsState {
	return OpsState{
		OpsStatus:    s.mock.OpsStatus(),
		MarketStatus: s.mock.MarketStatus(),
		DataHealth:   s.mock.DataHealth(),
		Snapshot:     s.mock.Snapshot(),
	}
}
