package runtime

import (
	"chat-rooms/contract"
	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// inboundFrame is the only frame a client may send. Unknown fields are ignored.
type inboundFrame struct {
	Content *string `json:"content" validate:"required"`
}

// Ingest turns a raw inbound frame into a persisted message and broadcasts it.
// A message envelope is never sent for content the store didn't accept.
type Ingest struct {
	log              *slog.Logger
	store            contract.IMessageRepository
	broadcaster      contract.IBroadcaster
	moderator        contract.IModerator
	maxContentLength int
	now              func() time.Time
}

// NewIngest builds an Ingest. moderator may be nil, in which case content is stored as sent.
func NewIngest(log *slog.Logger, store contract.IMessageRepository, broadcaster contract.IBroadcaster,
	moderator contract.IModerator, maxContentLength int) *Ingest {
	return &Ingest{
		log:              log,
		store:            store,
		broadcaster:      broadcaster,
		moderator:        moderator,
		maxContentLength: maxContentLength,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (i *Ingest) Ingest(ctx context.Context, binding contract.Binding, raw []byte) (chat.Message, error) {
	content, err := i.decode(raw)
	if err != nil {
		return chat.Message{}, err
	}

	var lang string
	if i.moderator != nil {
		var words []string
		content, words = i.moderator.Censor(content)
		if len(words) > 0 {
			i.log.Info("Message censored",
				"room_id", binding.Room, "user_id", binding.Identity.ID, "count", len(words))
		}
		lang = i.moderator.Detect(content)
	}

	message, err := i.store.StoreMessage(ctx, chat.PostMessageCommand{
		Room:       binding.Room,
		AuthorID:   binding.Identity.ID,
		AuthorName: binding.Identity.Username,
		Content:    content,
		Lang:       lang,
		CreatedAt:  i.now(),
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistFailed, err)
	}

	report := i.broadcaster.Broadcast(ctx, binding.Room, chat.MessageEnvelope(message))
	i.log.Debug("Message broadcast",
		"room_id", binding.Room, "message_id", message.ID,
		"recipients", report.Recipients, "delivered", report.Delivered)
	return message, nil
}

// decode validates the frame and returns its content untouched.
// Blank content is refused but surrounding spaces of valid content are kept.
func (i *Ingest) decode(raw []byte) (string, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}
	if err := validate.Struct(frame); err != nil {
		return "", fmt.Errorf("%w: missing content", errors.ErrEmptyContent)
	}
	content := *frame.Content
	if strings.TrimSpace(content) == "" {
		return "", errors.ErrEmptyContent
	}
	if i.maxContentLength > 0 && utf8.RuneCountInString(content) > i.maxContentLength {
		return "", fmt.Errorf("%w: %d runes", errors.ErrContentTooLong, utf8.RuneCountInString(content))
	}
	return content, nil
}
