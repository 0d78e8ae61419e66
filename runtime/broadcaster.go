package runtime

import (
	"chat-rooms/contract"
	"chat-rooms/domain/chat"
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Broadcaster pushes envelopes to every connection of a room.
//
// Each room has a lane: a mutex held for a whole pass, so two broadcasts to the
// same room are delivered in the order they were submitted. Rooms don't share
// lanes and are never ordered against each other.
//
// A pass works on a snapshot of the room members. Sends inside a pass run
// concurrently, each one bounded by sendTimeout, and the pass waits for all of
// them. A failing recipient never aborts the pass: it is evicted once the lane
// has been released.
type Broadcaster struct {
	log         *slog.Logger
	registry    contract.IRegistry
	sendTimeout time.Duration

	mu    sync.Mutex
	lanes map[chat.RoomID]*lane
}

type lane struct {
	sync.Mutex
	refs int
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry, sendTimeout time.Duration) *Broadcaster {
	return &Broadcaster{
		log:         log,
		registry:    registry,
		sendTimeout: sendTimeout,
		lanes:       make(map[chat.RoomID]*lane),
	}
}

// Broadcast delivers the envelope to the current members of roomID.
// Failures are reported, never returned.
func (b *Broadcaster) Broadcast(ctx context.Context, roomID chat.RoomID, envelope chat.Envelope) contract.BroadcastReport {
	l := b.acquire(roomID)
	report, failed := b.pass(ctx, roomID, envelope)
	b.release(roomID, l)

	for _, conn := range failed {
		_ = conn.Close(chat.CloseInternalError, "send failed")
		if b.Depart(ctx, conn.ID()) {
			report.Evicted = append(report.Evicted, conn.ID())
		}
	}
	return report
}

// Depart is the single way out of a room.
// The leave envelope is broadcast only when the registry actually held the
// connection, so a connection is announced as leaving at most once whatever
// the number of callers.
func (b *Broadcaster) Depart(ctx context.Context, connID chat.ConnID) bool {
	binding, ok := b.registry.Deregister(connID)
	if !ok {
		return false
	}
	b.log.Debug("Connection departed",
		"conn_id", connID, "room_id", binding.Room, "user_id", binding.Identity.ID)
	b.Broadcast(ctx, binding.Room, chat.LeaveEnvelope(binding.Room, binding.Identity))
	return true
}

func (b *Broadcaster) pass(ctx context.Context, roomID chat.RoomID, envelope chat.Envelope) (contract.BroadcastReport, []contract.Connection) {
	members := b.registry.MembersOf(roomID)
	report := contract.BroadcastReport{Recipients: len(members)}
	if len(members) == 0 {
		return report, nil
	}

	// Every send runs to completion: errgroup only reports the first failure,
	// results keeps each one so all failed recipients can be evicted.
	results := make([]error, len(members))
	var g errgroup.Group
	for i, conn := range members {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, b.sendTimeout)
			defer cancel()
			results[i] = conn.Send(sendCtx, envelope)
			return results[i]
		})
	}
	if err := g.Wait(); err == nil {
		report.Delivered = len(members)
		return report, nil
	}

	var failed []contract.Connection
	for i, err := range results {
		if err != nil {
			b.log.Warn("Unable to deliver envelope",
				"conn_id", members[i].ID(), "room_id", roomID, "type", envelope.Kind, "error", err)
			failed = append(failed, members[i])
			continue
		}
		report.Delivered++
	}
	return report, failed
}

func (b *Broadcaster) acquire(roomID chat.RoomID) *lane {
	b.mu.Lock()
	l, ok := b.lanes[roomID]
	if !ok {
		l = &lane{}
		b.lanes[roomID] = l
	}
	l.refs++
	b.mu.Unlock()

	l.Lock()
	return l
}

func (b *Broadcaster) release(roomID chat.RoomID, l *lane) {
	l.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(b.lanes, roomID)
	}
}
