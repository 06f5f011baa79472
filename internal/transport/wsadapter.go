package transport

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/richtraders/hft-core/internal/logging"
)

// ErrTransportBusy is returned by WSAdapter.Write when the outbound queue is
// saturated: the caller must not block the hot path waiting for room.
var ErrTransportBusy = errors.New("transport: write queue full")

// wsBreakerSettings mirrors the ReadyToTrip/OnStateChange shape the
// teacher's circuit breaker factory builds around gobreaker.Settings,
// specialised to opening on repeated reconnect failures rather than
// generic RPC failures.
func wsBreakerSettings(name string, log logging.Producer) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("transport breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
}

// WSAdapter is the reference Transport implementation over a
// gorilla/websocket client dialer. The teacher's only gorilla/websocket
// usage is a server-side Upgrader; this is the outbound counterpart
// spec.md §1.12 calls for, with reconnect attempts gated by a
// gobreaker.CircuitBreaker so a persistently unreachable venue stops
// hammering it and instead fails fast.
type WSAdapter struct {
	url     string
	log     logging.Producer
	dialer  *websocket.Dialer
	breaker *gobreaker.CircuitBreaker

	mu      sync.Mutex
	conn    *websocket.Conn
	handler MessageHandler

	writeCh chan []byte
	closed  atomic.Bool
	done    chan struct{}
}

// NewWSAdapter dials url and starts the read/write pumps. The initial dial
// is not breaker-gated; only reconnect attempts after a drop are.
func NewWSAdapter(url string, log logging.Producer) (*WSAdapter, error) {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}

	a := &WSAdapter{
		url:     url,
		log:     log,
		dialer:  dialer,
		breaker: gobreaker.NewCircuitBreaker(wsBreakerSettings(url, log)),
		conn:    conn,
		writeCh: make(chan []byte, 4096),
		done:    make(chan struct{}),
	}

	go a.writePump()
	go a.readPump()

	return a, nil
}

// Write enqueues msg for the write pump. It never blocks: a full queue
// returns ErrTransportBusy immediately.
func (a *WSAdapter) Write(msg []byte) (int, error) {
	if a.closed.Load() {
		return 0, errors.New("transport: closed")
	}
	select {
	case a.writeCh <- msg:
		return len(msg), nil
	default:
		return 0, ErrTransportBusy
	}
}

// RegisterMessageCallback installs handler, replacing any prior one.
func (a *WSAdapter) RegisterMessageCallback(handler MessageHandler) {
	a.mu.Lock()
	a.handler = handler
	a.mu.Unlock()
}

// Close stops both pumps and releases the underlying connection.
func (a *WSAdapter) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(a.done)
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (a *WSAdapter) writePump() {
	for {
		select {
		case <-a.done:
			return
		case msg := <-a.writeCh:
			a.mu.Lock()
			conn := a.conn
			a.mu.Unlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				a.log.Error("transport write failed", zap.Error(err))
			}
		}
	}
}

func (a *WSAdapter) readPump() {
	for {
		a.mu.Lock()
		conn := a.conn
		a.mu.Unlock()

		_, data, err := conn.ReadMessage()
		if err != nil {
			if a.closed.Load() {
				return
			}
			a.log.Warn("transport read failed, reconnecting", zap.Error(err))
			if !a.reconnect() {
				return
			}
			continue
		}

		a.mu.Lock()
		handler := a.handler
		a.mu.Unlock()
		if handler != nil {
			handler(data)
		}
	}
}

// reconnect redials through the circuit breaker, sleeping 500ms after each
// failed attempt; while the breaker is open, attempts fail fast without
// dialing until its Timeout elapses. Returns false once the adapter has been
// closed out from under it.
func (a *WSAdapter) reconnect() bool {
	for {
		if a.closed.Load() {
			return false
		}
		_, err := a.breaker.Execute(func() (any, error) {
			conn, _, dialErr := a.dialer.Dial(a.url, nil)
			if dialErr != nil {
				return nil, dialErr
			}
			a.mu.Lock()
			if a.conn != nil {
				a.conn.Close()
			}
			a.conn = conn
			handler := a.handler
			a.mu.Unlock()
			if handler != nil {
				handler([]byte(ConnectedSentinel))
			}
			return nil, nil
		})
		if err == nil {
			return true
		}
		a.log.Warn("transport reconnect attempt failed", zap.Error(err))
		time.Sleep(500 * time.Millisecond)
	}
}
