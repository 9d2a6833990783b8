// Package realtime implements the client side of the regeneration
// progress stream: a single logical subscription per task id over
// WebSocket, with automatic reconnection using exponential backoff and
// in-order delivery of parsed progress events to a caller-supplied
// handler.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"glowworm/types"

	"github.com/gorilla/websocket"
)

// ErrMaxReconnects is reported through the error handler exactly once
// when the reconnect attempt limit is exhausted. The client then stays
// disconnected until Connect is called again.
var ErrMaxReconnects = errors.New("max reconnection attempts reached")

// MessageHandler receives each well-formed progress event, in the order
// the transport delivered it.
type MessageHandler func(types.RegenerationProgress)

// ErrorHandler receives terminal connection errors.
type ErrorHandler func(error)

// Config holds tuning knobs for the client. The zero value is usable;
// unset fields fall back to defaults.
type Config struct {
	// BaseDelay is the delay before the first reconnect attempt; attempt
	// n waits BaseDelay * 2^(n-1). Defaults to 1s.
	BaseDelay time.Duration

	// MaxReconnectAttempts caps how many reconnects are tried after an
	// abnormal close before giving up. Defaults to 5.
	MaxReconnectAttempts int

	// HandshakeTimeout bounds each connection attempt so a hung dial
	// cannot stall the client indefinitely. Defaults to 10s.
	HandshakeTimeout time.Duration
}

func (c *Config) withDefaults() {
	if c.BaseDelay == 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
}

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateOpen
	stateClosed
)

// Client maintains one live subscription to a task's progress stream.
// It recovers transparently from transient disconnects; a close with
// code 1000 (caller-initiated) is terminal and never retried.
//
// A Client serves a single task subscription at a time. Consumers that
// need updates for several tasks hold one Client per task id.
type Client struct {
	resolver *EndpointResolver
	config   Config

	mu             sync.Mutex
	state          connState
	conn           *websocket.Conn
	attempts       int
	reconnectTimer *time.Timer
	waiters        []chan struct{}

	// dispatchMu is held across every onMessage invocation. Disconnect
	// takes it after invalidating the subscription, so it cannot return
	// while a delivery is in flight and no delivery can start after it
	// has returned.
	dispatchMu sync.Mutex

	// gen invalidates stale read loops and reconnect timers: it is
	// bumped by Disconnect and by each fresh Connect cycle, and every
	// deferred action re-checks it before touching client state.
	gen int

	taskID    string
	onMessage MessageHandler
	onError   ErrorHandler
	ctx       context.Context
}

// NewClient creates a progress stream client that resolves connection
// URLs through the given resolver.
func NewClient(resolver *EndpointResolver, config Config) *Client {
	config.withDefaults()
	return &Client{
		resolver: resolver,
		config:   config,
		state:    stateIdle,
	}
}

// Connect opens the progress stream for taskID and blocks until the
// transport is open or the attempt fails. It is idempotent while a
// connection is open, and a call issued while another attempt is in
// flight waits for that attempt instead of opening a second socket.
//
// onMessage is invoked synchronously from the read loop for every
// well-formed frame; malformed frames are dropped without surfacing an
// error. onError is optional and only reports terminal conditions
// (reconnect exhaustion). ctx governs this dial and any reconnect dials
// that follow.
func (c *Client) Connect(ctx context.Context, taskID string, onMessage MessageHandler, onError ErrorHandler) error {
	if taskID == "" {
		return errors.New("task ID is required")
	}
	if onMessage == nil {
		return errors.New("message handler is required")
	}

	c.mu.Lock()
	for {
		switch c.state {
		case stateOpen:
			c.mu.Unlock()
			return nil

		case stateConnecting:
			// Another attempt is in flight. Wait for it to settle and
			// re-check rather than opening a duplicate socket.
			ch := make(chan struct{})
			c.waiters = append(c.waiters, ch)
			c.mu.Unlock()
			select {
			case <-ch:
			case <-ctx.Done():
				return ctx.Err()
			}
			c.mu.Lock()

		default: // idle or closed: claim the connect
			c.gen++
			gen := c.gen
			c.state = stateConnecting
			c.attempts = 0
			c.taskID = taskID
			c.onMessage = onMessage
			c.onError = onError
			c.ctx = ctx
			// Captured before the lock is released: a Disconnect plus a
			// fresh Connect may rewrite the subscription fields while
			// this dial is in flight.
			wsURL := c.resolver.ProgressURL(taskID)
			c.mu.Unlock()

			conn, err := c.dial(ctx, wsURL)

			c.mu.Lock()
			if gen != c.gen {
				// Disconnected while dialing; discard the handle.
				c.mu.Unlock()
				if conn != nil {
					conn.Close()
				}
				return errors.New("client disconnected during connect")
			}
			if err != nil {
				c.state = stateClosed
				c.notifyWaitersLocked()
				c.mu.Unlock()
				return fmt.Errorf("failed to open progress stream: %w", err)
			}
			c.conn = conn
			c.state = stateOpen
			c.attempts = 0
			c.notifyWaitersLocked()
			c.mu.Unlock()

			go c.readLoop(gen, conn)
			return nil
		}
	}
}

// Disconnect closes the live connection with a normal closure code and
// cancels any pending reconnect, so a stale timer can never open a
// socket after the caller has discarded the client. By the time it
// returns, no further messages will be delivered. It is idempotent and
// safe to call when no connection exists, but must not be called from
// inside the message handler.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.gen++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.attempts = 0
	conn := c.conn
	c.conn = nil
	c.state = stateIdle
	c.notifyWaitersLocked()
	c.mu.Unlock()

	// Wait out any delivery already past its staleness check; later
	// dispatches see the bumped generation and drop their frames.
	c.dispatchMu.Lock()
	c.dispatchMu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			log.Printf("Progress stream close message failed: %v", err)
		}
		conn.Close()
	}
}

// IsConnected reports whether a connection is currently open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateOpen
}

// dial opens a single transport handle. The target URL and context are
// passed in rather than read from client state so a concurrent
// Disconnect/Connect cycle cannot race this goroutine onto the new
// subscription's fields.
func (c *Client) dial(ctx context.Context, wsURL string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	return conn, err
}

// readLoop delivers frames until the connection fails or is superseded.
func (c *Client) readLoop(gen int, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(gen, err)
			return
		}

		var update types.ProgressUpdate
		if err := json.Unmarshal(data, &update); err != nil {
			log.Printf("Dropping malformed progress frame: %v", err)
			continue
		}
		if update.Type != types.ProgressUpdateType {
			log.Printf("Dropping unexpected frame type %q", update.Type)
			continue
		}

		if !c.dispatch(gen, update.Data) {
			// Disconnected; drop in-flight frames.
			return
		}
	}
}

// dispatch delivers one frame unless the subscription was torn down.
// The staleness check and the handler call share dispatchMu so a frame
// that was in flight when Disconnect ran can never be delivered after
// Disconnect returns.
func (c *Client) dispatch(gen int, progress types.RegenerationProgress) bool {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	stale := gen != c.gen
	onMessage := c.onMessage
	c.mu.Unlock()
	if stale {
		return false
	}

	onMessage(progress)
	return true
}

// handleReadError decides whether a broken read is terminal or
// retriable. Only abnormal closes trigger the backoff schedule.
func (c *Client) handleReadError(gen int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		// Caller-initiated disconnect already tore the state down.
		return
	}

	c.conn = nil
	c.state = stateClosed

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		// Clean close is terminal and silent.
		c.notifyWaitersLocked()
		return
	}

	log.Printf("Progress stream for task %s lost: %v", c.taskID, err)
	c.scheduleReconnectLocked(gen)
}

// scheduleReconnectLocked arms the next reconnect attempt or reports
// exhaustion. Caller must hold c.mu.
func (c *Client) scheduleReconnectLocked(gen int) {
	c.attempts++
	if c.attempts > c.config.MaxReconnectAttempts {
		log.Printf("Giving up on progress stream for task %s after %d attempts", c.taskID, c.config.MaxReconnectAttempts)
		c.notifyWaitersLocked()
		if onError := c.onError; onError != nil {
			go onError(ErrMaxReconnects)
		}
		return
	}

	delay := c.config.BaseDelay << (c.attempts - 1)
	c.state = stateConnecting
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.redial(gen)
	})
}

// redial performs one reconnect attempt from the backoff timer.
func (c *Client) redial(gen int) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	wsURL := c.resolver.ProgressURL(c.taskID)
	ctx := c.ctx
	c.mu.Unlock()

	conn, err := c.dial(ctx, wsURL)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.state = stateClosed
		c.scheduleReconnectLocked(gen)
		c.mu.Unlock()
		return
	}

	c.conn = conn
	c.state = stateOpen
	c.attempts = 0
	c.notifyWaitersLocked()
	c.mu.Unlock()

	go c.readLoop(gen, conn)
}

// notifyWaitersLocked releases every Connect call waiting on an
// in-flight attempt. Caller must hold c.mu.
func (c *Client) notifyWaitersLocked() {
	for _, ch := range c.waiters {
		close(ch)
	}
	c.waiters = nil
}
