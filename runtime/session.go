package runtime

import (
	"chat-rooms/contract"
	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"context"
	stdErrors "errors"
	"log/slog"
	"sync/atomic"
)

type SessionState int32

const (
	Handshaking SessionState = iota
	Active
	Terminated
)

func (s SessionState) String() string {
	switch s {
	case Handshaking:
		return "handshaking"
	case Active:
		return "active"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Sessions holds what every session shares and creates one Session per accepted connection.
type Sessions struct {
	log          *slog.Logger
	gate         contract.IIdentityGate
	registry     contract.IRegistry
	broadcaster  contract.IBroadcaster
	history      contract.IHistory
	ingest       contract.IIngest
	historyLimit int
}

func NewSessions(log *slog.Logger, gate contract.IIdentityGate, registry contract.IRegistry,
	broadcaster contract.IBroadcaster, history contract.IHistory, ingest contract.IIngest,
	historyLimit int) *Sessions {
	return &Sessions{
		log:          log,
		gate:         gate,
		registry:     registry,
		broadcaster:  broadcaster,
		history:      history,
		ingest:       ingest,
		historyLimit: historyLimit,
	}
}

func (s *Sessions) New(conn contract.DuplexConnection, roomID chat.RoomID, credential string) *Session {
	return &Session{
		Sessions:   s,
		conn:       conn,
		roomID:     roomID,
		credential: credential,
		log:        s.log.With("conn_id", conn.ID(), "room_id", roomID),
	}
}

// Session drives one connection: handshaking, then active until the channel
// closes, then terminated. It runs on the goroutine that accepted the connection.
type Session struct {
	*Sessions
	conn       contract.DuplexConnection
	roomID     chat.RoomID
	credential string
	log        *slog.Logger
	state      atomic.Int32
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Run blocks until the session is terminated.
// A rejected credential closes the connection with a policy violation and
// leaves no trace in any room. Every other exit path departs from the room,
// then closes the connection.
func (s *Session) Run(ctx context.Context) {
	identity, err := s.gate.Authenticate(ctx, s.credential)
	if err != nil {
		s.log.Info("Connection rejected", "error", err)
		_ = s.conn.Close(chat.ClosePolicyViolation, "invalid credential")
		s.state.Store(int32(Terminated))
		return
	}

	s.log = s.log.With("user_id", identity.ID)
	defer s.terminate(ctx)

	s.registry.Register(s.conn, s.roomID, identity)
	s.broadcaster.Broadcast(ctx, s.roomID, chat.JoinEnvelope(s.roomID, identity))

	if _, err := s.history.Replay(ctx, s.conn, s.roomID, s.historyLimit, nil); err != nil {
		if !stdErrors.Is(err, errors.ErrHistoryUnavailable) {
			s.log.Warn("History replay interrupted", "error", err)
			return
		}
		s.log.Error("History unavailable, session continues", "error", err)
	}

	s.state.Store(int32(Active))
	binding := contract.Binding{Conn: s.conn, Identity: identity, Room: s.roomID}
	for {
		raw, err := s.conn.Receive(ctx)
		if err != nil {
			s.log.Debug("Channel closed", "error", err)
			return
		}
		if _, err := s.ingest.Ingest(ctx, binding, raw); err != nil {
			s.log.Info("Frame dropped", "error", err)
		}
	}
}

// terminate survives the cancellation of the serving context so the leave
// announcement still reaches the rest of the room on shutdown.
func (s *Session) terminate(ctx context.Context) {
	s.state.Store(int32(Terminated))
	s.broadcaster.Depart(context.WithoutCancel(ctx), s.conn.ID())
	_ = s.conn.Close(chat.CloseNormal, "")
}
