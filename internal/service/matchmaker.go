package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/strangerlink/match-signaling-service/config"
	"github.com/strangerlink/match-signaling-service/internal/adapter/pubsub"
	"github.com/strangerlink/match-signaling-service/internal/domain/event"
	"github.com/strangerlink/match-signaling-service/internal/domain/model"
	"github.com/strangerlink/match-signaling-service/internal/domain/registry"
)

// Matchmaker is the primary interface for the transport handler. It owns the
// queueing discipline, the pairing algorithm, the per-connection state
// machine and the partner-edge relay.
type Matchmaker interface {
	// Subscribe accepts a fresh connection into the registry (state Idle).
	Subscribe(ctx context.Context) (registry.Connector, error)
	// Disconnect tears down any pair, drains queue membership and removes
	// the connection. No event is ever delivered to the departed connection.
	Disconnect(connID uuid.UUID)

	Join(connID uuid.UUID, profile model.Profile)
	Skip(connID uuid.UUID)
	Leave(connID uuid.UUID)

	RelaySignal(connID uuid.UUID, kind model.SignalKind, blob json.RawMessage, targetID uuid.UUID)
	RelayText(connID uuid.UUID, text string)

	Stats() model.HubStats
}

// outbound is a send decided under the critical section and performed after
// the lock is released. No critical section may contain an I/O wait.
type outbound struct {
	conn registry.Connector
	ev   event.Eventer
}

// pairKey identifies an unordered connection pair.
type pairKey struct {
	lo, hi string
}

func newPairKey(a, b uuid.UUID) pairKey {
	as, bs := a.String(), b.String()
	if strings.Compare(as, bs) > 0 {
		as, bs = bs, as
	}
	return pairKey{lo: as, hi: bs}
}

// MatchService implements Matchmaker. One coarse mutex guards the registry,
// the queue pools and every partner pointer, so matching and teardown appear
// in a single global order; matching is O(#waiters) per event, which is small
// at expected loads.
type MatchService struct {
	mu     sync.Mutex
	reg    *registry.Registry
	queues *registry.QueueSet

	// recent remembers pairs that just ended so they are not immediately
	// reformed. Inactive when cooldown is zero.
	recent   *lru.Cache[pairKey, time.Time]
	cooldown time.Duration

	dispatcher  pubsub.EventDispatcher
	logger      *slog.Logger
	mailboxSize int
	sendTimeout time.Duration

	now func() time.Time
}

var _ Matchmaker = (*MatchService)(nil)

func NewMatchService(
	cfg *config.Config,
	logger *slog.Logger,
	reg *registry.Registry,
	queues *registry.QueueSet,
	dispatcher pubsub.EventDispatcher,
) *MatchService {
	recent, _ := lru.New[pairKey, time.Time](cfg.Matching.RecentPairCacheSize)

	return &MatchService{
		reg:         reg,
		queues:      queues,
		recent:      recent,
		cooldown:    cfg.Matching.RematchCooldown,
		dispatcher:  dispatcher,
		logger:      logger,
		mailboxSize: cfg.WS.SendBufferSize,
		sendTimeout: cfg.WS.SendTimeout,
		now:         time.Now,
	}
}

func (s *MatchService) Subscribe(ctx context.Context) (registry.Connector, error) {
	conn := registry.NewConnector(ctx, s.mailboxSize)

	s.mu.Lock()
	s.reg.Register(conn)
	s.mu.Unlock()

	return conn, nil
}

// Join moves an Idle connection into matching: pair instantly when an
// eligible waiter exists, enqueue otherwise. A join while Waiting or Paired
// is ignored.
func (s *MatchService) Join(connID uuid.UUID, profile model.Profile) {
	s.mu.Lock()
	u := s.reg.Lookup(connID)
	if u == nil || u.State != model.Idle {
		s.mu.Unlock()
		return
	}
	u.Profile = profile.Normalized()
	outs, lifecycle := s.matchLocked(u)
	s.mu.Unlock()

	s.dispatch(outs)
	s.export(lifecycle)
}

// Skip ends the current conversation (or abandons the queue). The skipping
// side returns to Idle; a paired partner is notified and re-matched.
func (s *MatchService) Skip(connID uuid.UUID) {
	var (
		outs      []outbound
		lifecycle []*event.LifecycleEvent
		partnerID uuid.UUID
	)

	s.mu.Lock()
	u := s.reg.Lookup(connID)
	if u == nil {
		s.mu.Unlock()
		return
	}
	switch u.State {
	case model.Waiting:
		s.queues.Remove(connID)
		u.State = model.Idle
		outs = append(outs, outbound{s.reg.Conn(connID), s.stateEvent(connID, event.Skipped)})
		lifecycle = append(lifecycle, event.NewLifecycleEvent(event.QueueLeft, "", connID))
	case model.Paired:
		partnerID = u.Partner
		outs, lifecycle = s.teardownLocked(u, event.ReasonSkip)
	default:
		// Skip while Idle is an idempotent no-op.
	}
	s.mu.Unlock()

	s.dispatch(outs)
	s.export(lifecycle)
	if partnerID != uuid.Nil {
		s.rematch(partnerID)
	}
}

// Leave removes the connection from the queue or ends its pair without any
// reply to the leaver. A paired partner is notified and re-matched.
func (s *MatchService) Leave(connID uuid.UUID) {
	var (
		outs      []outbound
		lifecycle []*event.LifecycleEvent
		partnerID uuid.UUID
	)

	s.mu.Lock()
	u := s.reg.Lookup(connID)
	if u == nil {
		s.mu.Unlock()
		return
	}
	switch u.State {
	case model.Waiting:
		s.queues.Remove(connID)
		u.State = model.Idle
		lifecycle = append(lifecycle, event.NewLifecycleEvent(event.QueueLeft, "", connID))
	case model.Paired:
		partnerID = u.Partner
		outs, lifecycle = s.teardownLocked(u, event.ReasonLeave)
	default:
		// Leave while Idle is an idempotent no-op.
	}
	s.mu.Unlock()

	s.dispatch(outs)
	s.export(lifecycle)
	if partnerID != uuid.Nil {
		s.rematch(partnerID)
	}
}

func (s *MatchService) Disconnect(connID uuid.UUID) {
	var (
		outs      []outbound
		lifecycle []*event.LifecycleEvent
		partnerID uuid.UUID
	)

	s.mu.Lock()
	u := s.reg.Lookup(connID)
	if u == nil {
		s.mu.Unlock()
		return
	}
	conn := s.reg.Conn(connID)
	switch u.State {
	case model.Waiting:
		s.queues.Remove(connID)
		lifecycle = append(lifecycle, event.NewLifecycleEvent(event.QueueLeft, "", connID))
	case model.Paired:
		partnerID = u.Partner
		outs, lifecycle = s.teardownLocked(u, event.ReasonDisconnect)
	}
	s.reg.Remove(connID)
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.dispatch(outs)
	s.export(lifecycle)
	if partnerID != uuid.Nil {
		s.rematch(partnerID)
	}
}

// RelaySignal forwards an offer/answer/ice-candidate along the partner edge.
// The sender must be Paired with exactly the claimed target; anything else is
// dropped so a stale client can never reach a third party.
func (s *MatchService) RelaySignal(connID uuid.UUID, kind model.SignalKind, blob json.RawMessage, targetID uuid.UUID) {
	s.mu.Lock()
	u := s.reg.Lookup(connID)
	if u == nil || u.State != model.Paired || u.Partner != targetID {
		s.mu.Unlock()
		return
	}
	conn := s.reg.Conn(targetID)
	s.mu.Unlock()

	if conn == nil {
		return
	}
	ev := event.NewSessionEvent(targetID, event.Signal, event.PriorityNormal, &model.SignalPayload{
		Kind:   kind,
		Blob:   blob,
		FromID: connID,
	})
	if !conn.Send(ev, s.sendTimeout) {
		s.logger.Debug("signal relay dropped: partner unreachable",
			"from", connID, "to", targetID, "kind", kind)
	}
}

// RelayText forwards a chat line to the partner with a server-assigned
// ISO-8601 timestamp.
func (s *MatchService) RelayText(connID uuid.UUID, text string) {
	s.mu.Lock()
	u := s.reg.Lookup(connID)
	if u == nil || u.State != model.Paired {
		s.mu.Unlock()
		return
	}
	partnerID := u.Partner
	conn := s.reg.Conn(partnerID)
	s.mu.Unlock()

	if conn == nil {
		return
	}
	ev := event.NewSessionEvent(partnerID, event.TextMessage, event.PriorityNormal, &model.TextMessagePayload{
		Text:      text,
		Sender:    connID,
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	})
	if !conn.Send(ev, s.sendTimeout) {
		s.logger.Debug("message relay dropped: partner unreachable",
			"from", connID, "to", partnerID)
	}
}

func (s *MatchService) Stats() model.HubStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.reg.Snapshot()
	st.QueueDepths = s.queues.Depths()
	return st
}

// matchLocked is the single matcher entry point: both a fresh join-queue and
// the re-queue of an abandoned partner land here with a user whose state is
// moving to Waiting. Caller holds the mutex.
func (s *MatchService) matchLocked(c *model.User) ([]outbound, []*event.LifecycleEvent) {
	w := s.queues.Scan(s.scanOrder(c), func(w *model.User) bool {
		return s.eligibleLocked(c, w)
	})

	if w == nil {
		c.State = model.Waiting
		s.queues.Enqueue(c)
		return []outbound{
				{s.reg.Conn(c.ConnID), s.stateEvent(c.ConnID, event.Waiting)},
			}, []*event.LifecycleEvent{
				event.NewLifecycleEvent(event.QueueJoined, "", c.ConnID),
			}
	}

	c.Partner, w.Partner = w.ConnID, c.ConnID
	c.State, w.State = model.Paired, model.Paired

	return []outbound{
			{s.reg.Conn(c.ConnID), s.matchedEvent(c.ConnID, w)},
			{s.reg.Conn(w.ConnID), s.matchedEvent(w.ConnID, c)},
		}, []*event.LifecycleEvent{
			event.NewLifecycleEvent(event.PairCreated, "", c.ConnID, w.ConnID),
		}
}

// scanOrder maximizes the chance of a match while honoring mutual
// preferences. A premium user with a specific preference scans the pool named
// by that preference, then "any". Everyone else scans the pool named by their
// own gender first: that pool holds premium waiters whose paid preference the
// candidate satisfies, and they win over free waiters in "any" regardless of
// queue age.
func (s *MatchService) scanOrder(c *model.User) []model.Bucket {
	if c.Profile.WantsSpecific() {
		return []model.Bucket{model.Bucket(c.Profile.PreferredGender), model.BucketAny}
	}
	order := []model.Bucket{model.Bucket(c.Profile.Gender), model.BucketAny}
	for _, b := range model.Buckets {
		if b != order[0] && b != model.BucketAny {
			order = append(order, b)
		}
	}
	return order
}

// eligibleLocked applies the mutual-preference rules of the pairing
// algorithm. Free users' preferences were already downgraded to "any" at
// join, so only premium preferences constrain here.
func (s *MatchService) eligibleLocked(c, w *model.User) bool {
	if w.ConnID == c.ConnID {
		return false
	}
	if c.Profile.WantsSpecific() && w.Profile.Gender != model.Gender(c.Profile.PreferredGender) {
		return false
	}
	if w.Profile.WantsSpecific() && c.Profile.Gender != model.Gender(w.Profile.PreferredGender) {
		return false
	}
	if s.cooldown > 0 {
		if endedAt, ok := s.recent.Get(newPairKey(c.ConnID, w.ConnID)); ok && s.now().Sub(endedAt) < s.cooldown {
			return false
		}
	}
	return true
}

// teardownLocked resets a pair after one side skips, leaves or disconnects.
// Both partner pointers are cleared and both sides return to Idle inside the
// same critical section, so partner symmetry is never observably broken.
// Notifications and the partner's re-queue happen after the lock is released.
func (s *MatchService) teardownLocked(a *model.User, reason event.EndReason) ([]outbound, []*event.LifecycleEvent) {
	b := s.reg.Lookup(a.Partner)
	if b == nil || b.Partner != a.ConnID {
		// A broken partner edge is a bug, not a user-visible condition.
		panic(fmt.Sprintf("partner symmetry violated: %s -> %s", a.ConnID, a.Partner))
	}

	a.Partner, b.Partner = uuid.Nil, uuid.Nil
	a.State, b.State = model.Idle, model.Idle

	if s.cooldown > 0 {
		s.recent.Add(newPairKey(a.ConnID, b.ConnID), s.now())
	}

	var outs []outbound
	switch reason {
	case event.ReasonSkip:
		outs = append(outs,
			outbound{s.reg.Conn(a.ConnID), s.stateEvent(a.ConnID, event.Skipped)},
			outbound{s.reg.Conn(b.ConnID), s.stateEvent(b.ConnID, event.PartnerSkipped)},
		)
	case event.ReasonLeave, event.ReasonDisconnect:
		outs = append(outs,
			outbound{s.reg.Conn(b.ConnID), s.stateEvent(b.ConnID, event.PartnerDisconnected)},
		)
	}

	return outs, []*event.LifecycleEvent{
		event.NewLifecycleEvent(event.PairEnded, reason, a.ConnID, b.ConnID),
	}
}

// rematch re-runs the matcher on an abandoned partner as if it had just sent
// join-queue with its last-known profile. Mandatory after every teardown: the
// partner never returns to Idle unless they themselves leave.
func (s *MatchService) rematch(connID uuid.UUID) {
	s.mu.Lock()
	u := s.reg.Lookup(connID)
	if u == nil || u.State != model.Idle {
		// Disconnected or re-paired in the window between teardown and here.
		s.mu.Unlock()
		return
	}
	outs, lifecycle := s.matchLocked(u)
	s.mu.Unlock()

	s.dispatch(outs)
	s.export(lifecycle)
}

func (s *MatchService) stateEvent(connID uuid.UUID, kind event.Kind) event.Eventer {
	return event.NewSessionEvent(connID, kind, event.PriorityHigh, nil)
}

func (s *MatchService) matchedEvent(connID uuid.UUID, partner *model.User) event.Eventer {
	return event.NewSessionEvent(connID, event.Matched, event.PriorityHigh, &model.MatchedPayload{
		PartnerID:   partner.ConnID,
		PartnerInfo: partner.Info(),
	})
}

// dispatch performs the sends decided under the lock. A false return means
// the transport is gone; the read pump notices the same condition and drives
// the actual disconnect, so nothing more is done here.
func (s *MatchService) dispatch(outs []outbound) {
	for _, o := range outs {
		if o.conn == nil {
			continue
		}
		if !o.conn.Send(o.ev, s.sendTimeout) {
			s.logger.Debug("outbound event dropped: connection unreachable",
				"conn_id", o.ev.GetConnID(), "kind", o.ev.GetKind())
		}
	}
}

// export publishes lifecycle telemetry. Failures are shed (and logged): the
// bus must never stall or fail matching.
func (s *MatchService) export(events []*event.LifecycleEvent) {
	for _, ev := range events {
		if err := s.dispatcher.Publish(context.Background(), ev); err != nil {
			s.logger.Warn("lifecycle export failed", "kind", ev.Kind, "err", err)
		}
	}
}
