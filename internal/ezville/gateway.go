package ezville

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-core/internal/infrastructure/mqtt"
)

// TransportMode selects how the bridge reaches the EW11 gateway.
type TransportMode string

const (
	// ModeSocket reads and writes raw bytes over a direct TCP
	// connection to the gateway.
	ModeSocket TransportMode = "socket"
	// ModeMQTT both receives and transmits via the broker's
	// ew11/recv and ew11/send topics.
	ModeMQTT TransportMode = "mqtt"
	// ModeMixed receives via the broker but transmits over TCP.
	ModeMixed TransportMode = "mixed"
)

// Connector is the EW11 gateway's transport boundary: received bytes
// are delivered to the callback set with SetOnData, and Send writes
// outbound bytes using whatever channel the mode implies. It plays the
// same role for this bridge that the knxd Connector interface plays
// for the KNX bridge.
type Connector interface {
	Send(ctx context.Context, data []byte) error
	SetOnData(callback func([]byte))
	IsConnected() bool
	Close() error
}

var (
	_ Connector = (*SocketConnector)(nil)
	_ Connector = (*MQTTConnector)(nil)
	_ Connector = (*MixedConnector)(nil)
)

// SocketConnectorConfig configures a direct-TCP gateway connection.
type SocketConnectorConfig struct {
	Address           string        // host:port of the EW11 gateway
	BufferSize        int           // EW11_BUFFER_SIZE
	ReceiveDelay      time.Duration // SERIAL_RECV_DELAY between reads
	ReconnectInterval time.Duration // linear backoff between reconnect attempts, default 1s
}

// SocketConnector implements Connector over a raw TCP socket, with
// infinite-retry linear-backoff reconnection on read or dial error,
// mirroring the KNX bridge's knxd.go client shape.
type SocketConnector struct {
	cfg    SocketConnectorConfig
	logger *logging.Logger

	connMu sync.RWMutex
	conn   net.Conn

	onDataMu sync.RWMutex
	onData   func([]byte)

	done chan struct{}
	wg   sync.WaitGroup

	connected atomic.Bool
}

// DialSocket connects to cfg.Address and starts the background receive
// loop. Connection failures during the initial dial are retried with
// the same linear backoff used for later reconnects, so DialSocket
// only returns once a connection has been established or ctx is
// cancelled.
func DialSocket(ctx context.Context, cfg SocketConnectorConfig, logger *logging.Logger) (*SocketConnector, error) {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 1024
	}
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = time.Second
	}

	c := &SocketConnector{
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}

	conn, err := c.dialWithRetry(ctx)
	if err != nil {
		return nil, err
	}
	c.setConn(conn)

	c.wg.Add(1)
	go c.receiveLoop()

	return c, nil
}

func (c *SocketConnector) dialWithRetry(ctx context.Context) (net.Conn, error) {
	for {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", c.cfg.Address)
		if err == nil {
			return conn, nil
		}
		c.logger.Warn("gateway dial failed, retrying", "address", c.cfg.Address, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.done:
			return nil, ErrNotConnected
		case <-time.After(c.cfg.ReconnectInterval):
		}
	}
}

func (c *SocketConnector) setConn(conn net.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.connected.Store(true)
}

func (c *SocketConnector) getConn() net.Conn {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn
}

// receiveLoop blocks on socket reads, delivering whatever bytes
// arrive to the onData callback. Any read error reconnects with
// infinite retry and 1s linear backoff, matching the protocol's
// socket-error handling.
func (c *SocketConnector) receiveLoop() {
	defer c.wg.Done()

	buf := make([]byte, c.cfg.BufferSize)
	for {
		select {
		case <-c.done:
			return
		default:
		}

		conn := c.getConn()
		n, err := conn.Read(buf)
		if err != nil {
			c.connected.Store(false)
			c.logger.Warn("gateway read failed, reconnecting", "error", err)
			newConn, dialErr := c.dialWithRetry(context.Background())
			if dialErr != nil {
				return // only happens if done was closed mid-retry
			}
			conn.Close()
			c.setConn(newConn)
			continue
		}

		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			c.onDataMu.RLock()
			cb := c.onData
			c.onDataMu.RUnlock()
			if cb != nil {
				cb(data)
			}
		}

		if c.cfg.ReceiveDelay > 0 {
			time.Sleep(c.cfg.ReceiveDelay)
		}
	}
}

// Send writes data directly to the TCP connection.
func (c *SocketConnector) Send(_ context.Context, data []byte) error {
	conn := c.getConn()
	if conn == nil {
		return ErrNotConnected
	}
	_, err := conn.Write(data)
	return err
}

// SetOnData registers the callback invoked for each batch of bytes
// read from the socket.
func (c *SocketConnector) SetOnData(callback func([]byte)) {
	c.onDataMu.Lock()
	c.onData = callback
	c.onDataMu.Unlock()
}

// IsConnected reports whether the underlying socket is currently up.
func (c *SocketConnector) IsConnected() bool { return c.connected.Load() }

// Close stops the receive loop and closes the socket.
func (c *SocketConnector) Close() error {
	select {
	case <-c.done:
		return nil
	default:
		close(c.done)
	}
	if conn := c.getConn(); conn != nil {
		conn.Close()
	}
	c.wg.Wait()
	return nil
}

// MQTTConnector implements Connector entirely over the broker: inbound
// bytes arrive on ew11/recv, outbound bytes are published to
// ew11/send.
type MQTTConnector struct {
	client *mqtt.Client

	onDataMu sync.RWMutex
	onData   func([]byte)
}

// NewMQTTConnector subscribes to the gateway's recv topic on client
// and returns a Connector that publishes to its send topic.
func NewMQTTConnector(client *mqtt.Client) (*MQTTConnector, error) {
	c := &MQTTConnector{client: client}
	topics := Topics{}
	err := client.Subscribe(topics.GatewayRecv(), 0, func(_ string, payload []byte) error {
		c.onDataMu.RLock()
		cb := c.onData
		c.onDataMu.RUnlock()
		if cb != nil {
			cb(payload)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ezville: subscribe to gateway recv topic: %w", err)
	}
	return c, nil
}

// Send publishes data to the gateway send topic.
func (c *MQTTConnector) Send(_ context.Context, data []byte) error {
	return c.client.Publish(Topics{}.GatewaySend(), data, 0, false)
}

// SetOnData registers the callback invoked for each message received
// on the gateway recv topic.
func (c *MQTTConnector) SetOnData(callback func([]byte)) {
	c.onDataMu.Lock()
	c.onData = callback
	c.onDataMu.Unlock()
}

// IsConnected mirrors the broker client's own connection state.
func (c *MQTTConnector) IsConnected() bool { return c.client.IsConnected() }

// Close unsubscribes from the gateway recv topic. The broker client's
// own lifecycle is managed by its owner, not by this connector.
func (c *MQTTConnector) Close() error {
	return c.client.Unsubscribe(Topics{}.GatewayRecv())
}

// MixedConnector receives over the broker (mode "mixed" still relies
// on the gateway publishing what it reads from the bus) but transmits
// over a direct TCP socket, matching the protocol's `mixed` mode.
type MixedConnector struct {
	recv *MQTTConnector
	send *SocketConnector
}

// NewMixedConnector composes an already-built MQTT receiver and socket
// sender into one Connector.
func NewMixedConnector(recv *MQTTConnector, send *SocketConnector) *MixedConnector {
	return &MixedConnector{recv: recv, send: send}
}

// Send writes to the TCP socket leg.
func (m *MixedConnector) Send(ctx context.Context, data []byte) error {
	return m.send.Send(ctx, data)
}

// SetOnData registers the callback on the MQTT receive leg.
func (m *MixedConnector) SetOnData(callback func([]byte)) {
	m.recv.SetOnData(callback)
}

// IsConnected reports whether both legs are connected.
func (m *MixedConnector) IsConnected() bool {
	return m.recv.IsConnected() && m.send.IsConnected()
}

// Close closes both legs.
func (m *MixedConnector) Close() error {
	sendErr := m.send.Close()
	recvErr := m.recv.Close()
	if sendErr != nil {
		return sendErr
	}
	return recvErr
}
