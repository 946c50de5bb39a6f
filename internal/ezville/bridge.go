package ezville

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-core/internal/infrastructure/mqtt"
)

// Config holds every tunable the bridge needs once connected and
// subscribed; it is built from the loaded JSON configuration file.
type Config struct {
	StateLoopDelay   time.Duration
	CommandLoopDelay time.Duration
	EW11Timeout      time.Duration
	Transmitter      TransmitterConfig
	Telnet           TelnetConfig

	// MQTTLog and EW11Log independently gate Debug-level wire tracing
	// of MQTT and gateway traffic, mirroring the original add-on's
	// mqtt_log/ew11_log toggles.
	MQTTLog bool
	EW11Log bool
}

// inFlightLoopDelay is the command loop's iteration delay while a
// command is outstanding, restored to Config.CommandLoopDelay while
// the queue is empty or the discovery window is open.
const inFlightLoopDelay = 100 * time.Microsecond

// Bridge wires the frame reader, decoder, command queue, discovery
// and watchdog together into the four cooperating loops the protocol
// design calls for: receiver (via the connector's own callback),
// state loop, command loop and watchdog.
type Bridge struct {
	cfg     Config
	mqtt    *mqtt.Client
	gateway Connector
	logger  *logging.Logger

	framer       *Framer
	state        *HomeState
	discoverySet *DiscoverySet
	queue        *CommandQueue
	transmitter  *Transmitter
	watchdog     *Watchdog
	latches      BatchLatches
	latchesMu    sync.Mutex

	startedAt time.Time

	inbound chan []byte

	ew11Logger *logging.Logger
	mqttLogger *logging.Logger

	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// gatewaySender adapts a Connector to the Sender interface the
// transmitter expects, binding it to a fixed background context and
// tracing every outbound frame when ew11_log is enabled.
type gatewaySender struct {
	gw      Connector
	logger  *logging.Logger
	traceOn bool
}

func (s gatewaySender) Send(frame []byte) error {
	s.logger.Trace(s.traceOn, "tx", "gateway frame sent", "bytes", fmt.Sprintf("% X", frame))
	return s.gw.Send(context.Background(), frame)
}

// NewBridge assembles a Bridge from its collaborators. now is injected
// for deterministic force-update-window tests; pass time.Now in
// production.
func NewBridge(cfg Config, mqttClient *mqtt.Client, gateway Connector, logger *logging.Logger, now func() time.Time) *Bridge {
	queue := NewCommandQueue()
	b := &Bridge{
		cfg:          cfg,
		mqtt:         mqttClient,
		gateway:      gateway,
		logger:       logger,
		framer:       NewFramer(),
		state:        NewHomeState(now),
		discoverySet: NewDiscoverySet(),
		queue:        queue,
		watchdog:     NewWatchdog(cfg.EW11Timeout, cfg.Telnet, logger),
		inbound:      make(chan []byte, 256),
		ew11Logger:   logger.With("component", "gateway"),
		mqttLogger:   logger.With("component", "mqtt"),
	}
	b.transmitter = NewTransmitter(gatewaySender{gw: gateway, logger: b.ew11Logger, traceOn: cfg.EW11Log}, cfg.Transmitter, logger)
	return b
}

// Start subscribes to the command topic, registers the gateway data
// callback and launches the three long-running loops (state, command,
// watchdog) plus the top-level group coordinating their shutdown.
// Start returns once everything is wired; the loops run until ctx is
// cancelled or Stop is called.
func (b *Bridge) Start(ctx context.Context) error {
	b.startedAt = time.Now()

	if err := b.mqtt.Subscribe(Topics{}.CommandSubscribe(), 1, b.handleCommandMessage); err != nil {
		return err
	}

	b.gateway.SetOnData(func(data []byte) {
		b.watchdog.NoteReceived()
		select {
		case b.inbound <- data:
		default:
			b.logger.Warn("inbound queue full, dropping gateway batch")
		}
	})

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { b.stateLoop(gctx); return nil })
	group.Go(func() error { b.commandLoop(gctx); return nil })
	group.Go(func() error { b.watchdogLoop(gctx); return nil })

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		_ = group.Wait()
	}()

	b.logger.Info("ezville bridge started")
	return nil
}

// Stop cancels every loop and waits for them to exit.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		b.wg.Wait()
		b.logger.Info("ezville bridge stopped")
	})
}

// discoveryOpen reports whether the one-time discovery latch is still
// open. It is a pure function of elapsed time since Start, so once it
// returns false it never returns true again for this process.
func (b *Bridge) discoveryOpen() bool {
	return time.Since(b.startedAt) < DiscoveryDuration
}

func (b *Bridge) stateLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-b.inbound:
			b.processInbound(data)
			time.Sleep(b.cfg.StateLoopDelay)
		}
	}
}

func (b *Bridge) processInbound(data []byte) {
	b.ew11Logger.Trace(b.cfg.EW11Log, "rx", "gateway data received", "bytes", fmt.Sprintf("% X", data))

	for _, frame := range b.framer.Feed(data) {
		classification, err := Classify(frame)
		if err != nil {
			continue
		}

		if classification.IsAck {
			b.queue.RemoveAck(frame.Ack())
			continue
		}

		var latches *BatchLatches
		isBatch := classification.Class == ClassBatch
		if isBatch {
			b.latchesMu.Lock()
			latches = &b.latches
		}
		updates := Decode(frame, classification.Class, latches)
		if isBatch {
			b.latchesMu.Unlock()
		}

		for _, u := range updates {
			b.publishUpdate(u)
		}
	}
}

// publishUpdate applies the one-time discovery latch and the
// force-update/dedup gate, then publishes to the broker if either
// says to.
func (b *Bridge) publishUpdate(u Update) {
	if b.discoveryOpen() && !b.discoverySet.Registered(u.Instance) {
		msgs, err := RenderDiscovery(u.Instance)
		if err != nil {
			b.logger.Error("render discovery payload failed", "error", err)
			return
		}
		for _, m := range msgs {
			b.mqttLogger.Trace(b.cfg.MQTTLog, "tx", "mqtt discovery published", "topic", m.Topic)
			if err := b.mqtt.Publish(m.Topic, m.Payload, 1, true); err != nil {
				b.logger.Error("publish discovery payload failed", "error", err, "topic", m.Topic)
			}
		}
		b.discoverySet.Register(u.Instance)
		return
	}

	if !b.state.Apply(u.Instance, u.Attribute, u.Value) {
		return
	}
	topic := Topics{}.State(u.Instance, u.Attribute)
	b.mqttLogger.Trace(b.cfg.MQTTLog, "tx", "mqtt state published", "topic", topic, "value", u.Value)
	if err := b.mqtt.PublishString(topic, u.Value, 0, true); err != nil {
		b.logger.Error("publish state failed", "error", err, "topic", topic)
	}
}

func (b *Bridge) handleCommandMessage(topic string, payload []byte) error {
	b.mqttLogger.Trace(b.cfg.MQTTLog, "rx", "mqtt command received", "topic", topic, "payload", string(payload))

	inst, attr, ok := ParseCommandTopic(topic)
	if !ok {
		return nil
	}

	b.latchesMu.Lock()
	entry, ok, err := RouteCommand(inst, attr, string(payload), b.state, &b.latches)
	b.latchesMu.Unlock()

	if err != nil {
		b.logger.Warn("command rejected", "error", err, "topic", topic)
		return nil
	}
	if !ok {
		b.logger.Info("command is a no-op, value unchanged", "topic", topic)
		return nil
	}
	b.queue.Push(entry)
	return nil
}

func (b *Bridge) commandLoop(ctx context.Context) {
	delay := b.cfg.CommandLoopDelay
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if b.discoveryOpen() || b.queue.Len() == 0 {
			delay = b.cfg.CommandLoopDelay
			time.Sleep(delay)
			continue
		}

		b.transmitter.Step(b.queue)
		delay = inFlightLoopDelay
		time.Sleep(delay)
	}
}

func (b *Bridge) watchdogLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.EW11Timeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.watchdog.Check()
		}
	}
}
