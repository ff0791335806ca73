// Package udp carries node datagrams in and door-node commands out.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
)

const (
	defaultReadTimeout = 100 * time.Millisecond
	maxDatagram        = 2048
)

// Handler consumes one datagram. data is only valid during the call.
type Handler interface {
	HandleDatagram(ctx context.Context, data []byte, from *net.UDPAddr)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, data []byte, from *net.UDPAddr)

// HandleDatagram calls f.
func (f HandlerFunc) HandleDatagram(ctx context.Context, data []byte, from *net.UDPAddr) {
	f(ctx, data, from)
}

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	Address string
	// ReadBuffer is the socket receive buffer in bytes; 0 keeps the OS default.
	ReadBuffer  int
	ReadTimeout time.Duration
	Handler     Handler
	Logger      logger.Logger
}

// Listener reads datagrams until its context ends.
type Listener struct {
	cfg    ListenerConfig
	logger logger.Logger

	mu   sync.RWMutex
	conn *net.UDPConn
}

// NewListener applies defaults to cfg.
func NewListener(cfg ListenerConfig) *Listener {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	l := &Listener{cfg: cfg, logger: cfg.Logger}
	if l.logger == nil {
		l.logger = logger.Get().Named("udp")
	}
	return l
}

// Listen binds the socket.
func (l *Listener) Listen() error {
	addr, err := net.ResolveUDPAddr("udp", l.cfg.Address)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", l.cfg.Address, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen %q: %w", l.cfg.Address, err)
	}
	if l.cfg.ReadBuffer > 0 {
		if err := conn.SetReadBuffer(l.cfg.ReadBuffer); err != nil {
			l.logger.Warn(context.Background(), "setting receive buffer failed", logger.Int("bytes", l.cfg.ReadBuffer), logger.Error(err))
		}
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	return nil
}

// LocalAddr returns the bound address, or nil before Listen.
func (l *Listener) LocalAddr() net.Addr {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Serve reads datagrams until ctx is done. The short read deadline lets the
// loop notice cancellation.
func (l *Listener) Serve(ctx context.Context) error {
	l.mu.RLock()
	conn := l.conn
	l.mu.RUnlock()
	if conn == nil {
		return net.ErrClosed
	}
	defer l.Close()

	l.logger.Info(ctx, "udp listener started", logger.String("addr", conn.LocalAddr().String()))
	buf := make([]byte, maxDatagram)
	var deadlineErrLogged bool
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout)); err != nil && !deadlineErrLogged {
			l.logger.Warn(ctx, "setting read deadline failed", logger.Error(err))
			deadlineErrLogged = true
		}
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Warn(ctx, "udp read failed", logger.Error(err))
			continue
		}
		if l.cfg.Handler != nil {
			l.cfg.Handler.HandleDatagram(ctx, buf[:n], from)
		}
	}
}

// Start binds and serves.
func (l *Listener) Start(ctx context.Context) error {
	if err := l.Listen(); err != nil {
		return err
	}
	return l.Serve(ctx)
}

// Close releases the socket.
func (l *Listener) Close() error {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
