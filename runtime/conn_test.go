package runtime

import (
	"chat-rooms/domain/chat"
	"context"
	"fmt"
	"io"
	"sync"
)

// fakeConn is an in-memory duplex connection recording what it is sent.
type fakeConn struct {
	id chat.ConnID

	mu      sync.Mutex
	sent    []chat.Envelope
	sendErr error
	block   bool
	code    int

	inbox     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{
		id:     chat.ConnID(id),
		inbox:  make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ID() chat.ConnID { return c.id }

func (c *fakeConn) Send(ctx context.Context, envelope chat.Envelope) error {
	c.mu.Lock()
	block, sendErr := c.block, c.sendErr
	c.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if sendErr != nil {
		return sendErr
	}
	select {
	case <-c.closed:
		return fmt.Errorf("connection %s closed", c.id)
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, envelope)
	return nil
}

func (c *fakeConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case raw := <-c.inbox:
		return raw, nil
	case <-c.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Close(code int, _ string) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.code = code
		c.mu.Unlock()
		close(c.closed)
	})
	return nil
}

func (c *fakeConn) failWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

func (c *fakeConn) blockSends() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block = true
}

func (c *fakeConn) envelopes() []chat.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Envelope(nil), c.sent...)
}

func (c *fakeConn) kinds() []chat.Kind {
	var kinds []chat.Kind
	for _, e := range c.envelopes() {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (c *fakeConn) closeCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
