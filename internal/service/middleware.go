package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/strangerlink/match-signaling-service/internal/domain/model"
	"github.com/strangerlink/match-signaling-service/internal/domain/registry"
)

// MatchmakerMiddleware adds observability to the matching engine without
// touching the pairing logic.
type MatchmakerMiddleware struct {
	Next   Matchmaker
	Logger *slog.Logger
}

var _ Matchmaker = (*MatchmakerMiddleware)(nil)

func (m *MatchmakerMiddleware) Subscribe(ctx context.Context) (registry.Connector, error) {
	conn, err := m.Next.Subscribe(ctx)
	if err != nil {
		m.Logger.Error("subscribe failed", "err", err)
		return nil, err
	}
	m.Logger.Info("connection registered", "conn_id", conn.GetID())
	return conn, nil
}

func (m *MatchmakerMiddleware) Disconnect(connID uuid.UUID) {
	start := time.Now()
	m.Next.Disconnect(connID)
	m.Logger.Info("connection removed",
		"conn_id", connID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (m *MatchmakerMiddleware) Join(connID uuid.UUID, profile model.Profile) {
	start := time.Now()
	m.Next.Join(connID, profile)
	m.Logger.Debug("join handled",
		"conn_id", connID,
		"gender", profile.Gender,
		"preferred", profile.PreferredGender,
		"tier", profile.Tier,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (m *MatchmakerMiddleware) Skip(connID uuid.UUID) {
	m.Next.Skip(connID)
	m.Logger.Debug("skip handled", "conn_id", connID)
}

func (m *MatchmakerMiddleware) Leave(connID uuid.UUID) {
	m.Next.Leave(connID)
	m.Logger.Debug("leave handled", "conn_id", connID)
}

func (m *MatchmakerMiddleware) RelaySignal(connID uuid.UUID, kind model.SignalKind, blob json.RawMessage, targetID uuid.UUID) {
	m.Next.RelaySignal(connID, kind, blob, targetID)
}

func (m *MatchmakerMiddleware) RelayText(connID uuid.UUID, text string) {
	m.Next.RelayText(connID, text)
}

func (m *MatchmakerMiddleware) Stats() model.HubStats {
	return m.Next.Stats()
}
