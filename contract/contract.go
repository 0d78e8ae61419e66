//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-rooms/domain/chat"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is the sending half of a live duplex channel.
// Send must be safe for concurrent use.
type Connection interface {
	ID() chat.ConnID
	Send(ctx context.Context, envelope chat.Envelope) error
	Close(code int, reason string) error
}

// DuplexConnection adds the receiving half used by the session loop.
// Receive blocks until a frame arrives or the channel is closed.
type DuplexConnection interface {
	Connection
	Receive(ctx context.Context) ([]byte, error)
}

// Binding is what the registry knows about a registered connection.
type Binding struct {
	Conn     Connection
	Identity chat.Identity
	Room     chat.RoomID
}

type RegistryStats struct {
	Rooms       int
	Connections int
}

type IRegistry interface {
	Register(conn Connection, roomID chat.RoomID, identity chat.Identity)
	Deregister(connID chat.ConnID) (Binding, bool)
	Lookup(connID chat.ConnID) (Binding, bool)
	MembersOf(roomID chat.RoomID) []Connection
	Bindings() []Binding
	Stats() RegistryStats
}

// BroadcastReport summarizes one broadcast pass.
type BroadcastReport struct {
	Recipients int
	Delivered  int
	Evicted    []chat.ConnID
}

type IBroadcaster interface {
	Broadcast(ctx context.Context, roomID chat.RoomID, envelope chat.Envelope) BroadcastReport
	Depart(ctx context.Context, connID chat.ConnID) bool
}

type IHistory interface {
	Replay(ctx context.Context, conn Connection, roomID chat.RoomID, limit int, cursor *chat.MessageID) (int, error)
}

type IIngest interface {
	Ingest(ctx context.Context, binding Binding, raw []byte) (chat.Message, error)
}

type IIdentityGate interface {
	Authenticate(ctx context.Context, credential string) (chat.Identity, error)
}

type IAuthorizer interface {
	CanDelete(identity chat.Identity, message chat.Message) bool
}

type IModerator interface {
	Censor(content string) (string, []string)
	Detect(content string) string
}

type IMessageRepository interface {
	StoreMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error)
	GetMessages(ctx context.Context, cmd chat.GetMessageCommand) ([]chat.Message, error)
	GetMessage(ctx context.Context, id chat.MessageID) (chat.Message, error)
	DeleteMessage(ctx context.Context, id chat.MessageID) error
}

type IUserRepository interface {
	CreateUser(ctx context.Context, user chat.User) (chat.User, error)
	GetUserByUsername(ctx context.Context, username string) (chat.User, error)
	GetUserByID(ctx context.Context, id chat.UserID) (chat.User, error)
	ListUsers(ctx context.Context, skip, limit int) ([]chat.User, error)
}

type ISearchIndex interface {
	Index(ctx context.Context, message chat.Message) error
	Remove(ctx context.Context, id chat.MessageID) error
	Search(ctx context.Context, roomID chat.RoomID, terms string, limit int) ([]chat.MessageID, error)
}
