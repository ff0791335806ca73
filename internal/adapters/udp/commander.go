package udp

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
	"github.com/YashwanthDevelops/StampadeShield/pkg/metrics"
)

// Command names understood by the door node firmware.
const (
	CommandBuzz     = "BUZZ"
	CommandSetState = "SET_STATE"
)

const defaultCommandPort = 5006

// Command is the JSON a door node accepts.
type Command struct {
	Cmd   string `json:"cmd"`
	Level string `json:"level,omitempty"`
	State string `json:"state,omitempty"`
}

// CommanderConfig configures a Commander.
type CommanderConfig struct {
	// Address pins the door node, e.g. "192.168.4.3:5006". When empty the
	// address is learned from the node's own datagrams.
	Address string
	// Port is used with a learned IP.
	Port   int
	Logger logger.Logger
}

// Commander sends commands to the door node.
type Commander struct {
	port   int
	pinned bool
	logger logger.Logger

	mu     sync.RWMutex
	conn   *net.UDPConn
	target *net.UDPAddr
}

// NewCommander opens an unbound socket for sending.
func NewCommander(cfg CommanderConfig) (*Commander, error) {
	c := &Commander{port: cfg.Port, logger: cfg.Logger}
	if c.port <= 0 {
		c.port = defaultCommandPort
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("commander")
	}
	if cfg.Address != "" {
		addr, err := net.ResolveUDPAddr("udp", cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("resolve door node %q: %w", cfg.Address, err)
		}
		c.target, c.pinned = addr, true
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("open command socket: %w", err)
	}
	c.conn = conn
	return c, nil
}

// Learn records the door node's IP from one of its datagrams.
func (c *Commander) Learn(from *net.UDPAddr) {
	if c.pinned || from == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target != nil && c.target.IP.Equal(from.IP) {
		return
	}
	c.target = &net.UDPAddr{IP: from.IP, Port: c.port, Zone: from.Zone}
	c.logger.Info(context.Background(), "door node address learned", logger.String("addr", c.target.String()))
}

// Target returns the current destination or "".
func (c *Commander) Target() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.target == nil {
		return ""
	}
	return c.target.String()
}

// Buzz sounds the door buzzer.
func (c *Commander) Buzz(ctx context.Context, level model.AlertLevel) error {
	return c.send(ctx, Command{Cmd: CommandBuzz, Level: level.String()})
}

// SetState sets the door node's state LED.
func (c *Commander) SetState(ctx context.Context, state model.SystemState) error {
	return c.send(ctx, Command{Cmd: CommandSetState, State: state.String()})
}

func (c *Commander) send(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	target, conn := c.target, c.conn
	c.mu.RUnlock()
	if target == nil {
		metrics.RecordCommand(cmd.Cmd, "no_target")
		return ErrNoTarget
	}
	if conn == nil {
		return net.ErrClosed
	}
	body, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	if _, err := conn.WriteToUDP(body, target); err != nil {
		metrics.RecordCommand(cmd.Cmd, "failed")
		return fmt.Errorf("send %s to %s: %w", cmd.Cmd, target, err)
	}
	metrics.RecordCommand(cmd.Cmd, "sent")
	c.logger.Debug(ctx, "door command sent", logger.String("cmd", cmd.Cmd), logger.String("to", net.JoinHostPort(target.IP.String(), strconv.Itoa(target.Port))))
	return nil
}

// Close releases the socket.
func (c *Commander) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
