package ezville

import (
	"bufio"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-core/internal/infrastructure/logging"
)

// TelnetConfig holds the credentials and address the watchdog uses to
// reboot the EW11 gateway when the bus has gone stale.
type TelnetConfig struct {
	Address  string // host:port of the gateway's telnet service
	Username string
	Password string
	Timeout  time.Duration
}

// Watchdog tracks the last time any bytes were received from the
// gateway and, once that gap exceeds the configured timeout, reboots
// the gateway over telnet. It never touches the data-channel
// reconnect itself — that is the connector's job.
type Watchdog struct {
	timeout time.Duration
	telnet  TelnetConfig
	logger  *logging.Logger

	lastReceived atomic.Int64 // unix nanoseconds, 0 = never
	now          func() time.Time
	dial         func(network, address string) (net.Conn, error)
}

// NewWatchdog returns a Watchdog that reboots over telnet after
// timeout has elapsed with no received bytes.
func NewWatchdog(timeout time.Duration, telnet TelnetConfig, logger *logging.Logger) *Watchdog {
	return &Watchdog{
		timeout: timeout,
		telnet:  telnet,
		logger:  logger,
		now:     time.Now,
		dial:    net.Dial,
	}
}

// NoteReceived records that a batch of bytes just arrived from the
// gateway. Call this from the receive path, regardless of transport
// mode.
func (w *Watchdog) NoteReceived() {
	w.lastReceived.Store(w.now().UnixNano())
}

// Check runs one watchdog wake: if the gap since the last received
// byte exceeds the configured timeout, it reboots the gateway over
// telnet and logs the outcome. It never returns an error to the
// caller; failures are logged and the loop continues.
func (w *Watchdog) Check() {
	last := w.lastReceived.Load()
	if last == 0 {
		return
	}
	gap := w.now().Sub(time.Unix(0, last))
	if gap <= w.timeout {
		return
	}

	w.logger.Warn("gateway stale, attempting telnet reboot", "gap", gap)
	if err := w.reboot(); err != nil {
		w.logger.Error("telnet reboot failed", "error", err)
		return
	}
	w.logger.Info("telnet reboot command sent")
}

// reboot opens a telnet session, logs in and sends the literal
// Restart command.
func (w *Watchdog) reboot() error {
	timeout := w.telnet.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	conn, err := w.dial("tcp", w.telnet.Address)
	if err != nil {
		return fmt.Errorf("%w: dial: %w", ErrTelnetLogin, err)
	}
	defer conn.Close()

	conn.SetDeadline(w.now().Add(timeout))
	reader := bufio.NewReader(conn)

	if _, err := reader.ReadString(':'); err != nil {
		return fmt.Errorf("%w: read login prompt: %w", ErrTelnetLogin, err)
	}
	if _, err := fmt.Fprintf(conn, "%s\r\n", w.telnet.Username); err != nil {
		return fmt.Errorf("%w: write username: %w", ErrTelnetLogin, err)
	}

	if _, err := reader.ReadString(':'); err != nil {
		return fmt.Errorf("%w: read password prompt: %w", ErrTelnetLogin, err)
	}
	if _, err := fmt.Fprintf(conn, "%s\r\n", w.telnet.Password); err != nil {
		return fmt.Errorf("%w: write password: %w", ErrTelnetLogin, err)
	}

	if _, err := fmt.Fprintf(conn, "Restart\r\n"); err != nil {
		return fmt.Errorf("%w: write restart command: %w", ErrTelnetLogin, err)
	}

	return nil
}
