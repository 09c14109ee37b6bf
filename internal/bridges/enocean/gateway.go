package enocean

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

// Default timeouts and intervals for gateway communication.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultReconnectInterval is the initial delay between reconnection attempts.
	defaultReconnectInterval = 5 * time.Second

	// maxReconnectInterval is the maximum delay between reconnection attempts.
	maxReconnectInterval = 2 * time.Minute

	// readBufferSize is the size of the read buffer for incoming bytes.
	readBufferSize = 256

	// callbackQueueSize is the buffer size for the telegram callback queue.
	callbackQueueSize = 100

	// serialReadTimeout bounds a single serial read so shutdown is noticed.
	serialReadTimeout = 500 * time.Millisecond
)

// GatewayOptions holds gateway connection configuration.
type GatewayOptions struct {
	// URL is the gateway connection URL.
	// Supported formats:
	//   - "serial:///dev/ttyUSB0"
	//   - "tcp://host:port"
	//   - "ws://host/path", "wss://host/path"
	URL string

	// BaudRate applies to serial URLs. Default: 57600.
	BaudRate int

	// ConnectTimeout is the maximum time to wait for connection.
	// Default: 10 seconds.
	ConnectTimeout time.Duration

	// ReconnectInterval is the initial delay between reconnection attempts.
	// Default: 5 seconds.
	ReconnectInterval time.Duration

	// InsecureSkipVerify disables TLS verification for wss URLs.
	InsecureSkipVerify bool
}

// GatewayStats holds operational statistics.
type GatewayStats struct {
	FramesRx         uint64
	FramesTx         uint64
	BadFrames        uint64 // Frames failing sync, length or checksum checks
	TelegramsDropped uint64 // Telegrams dropped due to full callback queue
	ErrorsTotal      uint64
	ReconnectsTotal  uint64
	LastActivity     time.Time
	Connected        bool
	Reconnecting     bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Connector interface for testability.
// This allows mocking the gateway client in tests.
type Connector interface {
	Send(ctx context.Context, t Telegram) error
	SetOnTelegram(callback func(Telegram))
	IsConnected() bool
	Stats() GatewayStats
	Close() error
}

// Ensure GatewayClient implements Connector.
var _ Connector = (*GatewayClient)(nil)

// GatewayClient reads ESP2 frames from an Eltako/EnOcean gateway.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Telegram callbacks run on a single worker goroutine, in arrival order.
//
// Auto-Reconnection:
//   - When the transport fails, the client reconnects with exponential
//     backoff from ReconnectInterval up to maxReconnectInterval (2min).
//   - Reconnection stops only when Close() is called.
type GatewayClient struct {
	opts   GatewayOptions
	scheme string
	target string

	conn      io.ReadWriteCloser
	connMu    sync.RWMutex
	writeMu   sync.Mutex
	connected bool

	reconnecting atomic.Bool

	onTelegram    func(Telegram)
	callbackMu    sync.RWMutex
	callbackQueue chan Telegram

	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex

	framesRx         atomic.Uint64
	framesTx         atomic.Uint64
	badFrames        atomic.Uint64
	telegramsDropped atomic.Uint64
	errorsTotal      atomic.Uint64
	reconnectsTotal  atomic.Uint64
	lastActivity     atomic.Int64
}

// Connect opens the gateway transport and starts receiving telegrams.
//
// Parameters:
//   - ctx: Context for cancellation (used for initial connection)
//   - opts: Connection configuration
//
// Returns:
//   - *GatewayClient: Connected client ready for use
//   - error: ErrConnectionFailed if the URL is invalid or the transport cannot be opened
func Connect(ctx context.Context, opts GatewayOptions) (*GatewayClient, error) {
	if opts.BaudRate == 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.ReconnectInterval == 0 {
		opts.ReconnectInterval = defaultReconnectInterval
	}

	scheme, target, err := parseGatewayURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &GatewayClient{
		opts:          opts,
		scheme:        scheme,
		target:        target,
		done:          make(chan struct{}),
		callbackQueue: make(chan Telegram, callbackQueueSize),
	}

	conn, err := c.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	c.conn = conn
	c.connected = true
	c.lastActivity.Store(time.Now().Unix())

	c.wg.Add(2) //nolint:mnd // callback worker + receive loop
	go c.callbackWorker()
	go c.receiveLoop()

	return c, nil
}

// open dials the transport selected by the URL scheme.
func (c *GatewayClient) open(ctx context.Context) (io.ReadWriteCloser, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	switch c.scheme {
	case "serial":
		return openSerial(c.target, c.opts.BaudRate)
	case "tcp":
		var dialer net.Dialer
		conn, err := dialer.DialContext(ctx, "tcp", c.target)
		if err != nil {
			return nil, fmt.Errorf("dial tcp %s: %w", c.target, err)
		}
		return conn, nil
	case "ws", "wss":
		return openWebSocket(ctx, c.target, c.opts.InsecureSkipVerify)
	}
	return nil, fmt.Errorf("unsupported scheme %q", c.scheme)
}

// openSerial opens a serial port at 8N1.
func openSerial(path string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set serial read timeout: %w", err)
	}
	return port, nil
}

// wsConn adapts a WebSocket carrying binary messages to a byte stream.
type wsConn struct {
	conn *websocket.Conn
	buf  []byte
}

func openWebSocket(ctx context.Context, rawURL string, insecure bool) (io.ReadWriteCloser, error) {
	dialer := websocket.Dialer{HandshakeTimeout: defaultConnectTimeout}
	if insecure {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed gateways
	}
	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

func (w *wsConn) Read(p []byte) (int, error) {
	for len(w.buf) == 0 {
		msgType, data, err := w.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		w.buf = data
	}
	n := copy(p, w.buf)
	w.buf = w.buf[n:]
	return n, nil
}

func (w *wsConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

// receiveLoop reads bytes, reassembles frames, and queues telegrams.
// On transport failure it reconnects until Close is called.
func (c *GatewayClient) receiveLoop() {
	defer c.wg.Done()

	decoder := NewFrameDecoder()
	buf := make([]byte, readBufferSize)

	for {
		if c.isClosed() {
			return
		}

		conn := c.currentConn()
		if conn == nil {
			if !c.reconnect() {
				return
			}
			decoder.Reset()
			continue
		}

		n, err := conn.Read(buf)
		for i := range n {
			c.handleByte(decoder, buf[i])
		}
		if err == nil {
			continue
		}

		if c.isClosed() {
			return
		}
		c.logError("gateway read failed", err)
		c.errorsTotal.Add(1)
		c.handleDisconnect()
		if !c.reconnect() {
			return
		}
		decoder.Reset()
	}
}

// handleByte feeds one byte to the decoder and queues any completed telegram.
func (c *GatewayClient) handleByte(decoder *FrameDecoder, b byte) {
	frame, err := decoder.DecodeByte(b)
	if err != nil {
		c.badFrames.Add(1)
		c.logDebug("discarding bad frame", "error", err)
		return
	}
	if frame == nil {
		return
	}

	c.framesRx.Add(1)
	c.lastActivity.Store(time.Now().Unix())

	// Only radio telegrams are dispatched; gateway responses are counted.
	if frame.HSeq != HSeqRRT {
		return
	}

	c.callbackMu.RLock()
	hasCallback := c.onTelegram != nil
	c.callbackMu.RUnlock()
	if !hasCallback {
		return
	}

	select {
	case c.callbackQueue <- frame.Telegram():
	default:
		c.logError("callback queue full, dropping telegram", nil)
		c.telegramsDropped.Add(1)
		c.errorsTotal.Add(1)
	}
}

// callbackWorker delivers queued telegrams one at a time.
func (c *GatewayClient) callbackWorker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			c.drainCallbackQueue()
			return
		case t := <-c.callbackQueue:
			c.callbackMu.RLock()
			callback := c.onTelegram
			c.callbackMu.RUnlock()

			if callback != nil {
				func() {
					defer func() {
						if r := recover(); r != nil {
							c.logError("telegram callback panic", fmt.Errorf("%v", r))
						}
					}()
					callback(t)
				}()
			}
		}
	}
}

// handleDisconnect marks the client disconnected and closes the transport.
func (c *GatewayClient) handleDisconnect() {
	c.connMu.Lock()
	wasConnected := c.connected
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	if wasConnected {
		c.logInfo("gateway connection lost, will attempt reconnection")
	}
}

// reconnect re-opens the transport with exponential backoff.
// Returns true on success, false if Close was called.
func (c *GatewayClient) reconnect() bool {
	c.reconnecting.Store(true)
	defer c.reconnecting.Store(false)

	backoff := c.opts.ReconnectInterval
	for attempt := 1; ; attempt++ {
		if c.isClosed() {
			return false
		}

		c.logInfo("attempting reconnection", "attempt", attempt, "backoff", backoff.String())
		conn, err := c.open(context.Background())
		if err == nil {
			c.connMu.Lock()
			if c.isClosed() {
				c.connMu.Unlock()
				conn.Close()
				return false
			}
			c.conn = conn
			c.connected = true
			c.connMu.Unlock()

			c.reconnectsTotal.Add(1)
			c.lastActivity.Store(time.Now().Unix())
			c.logInfo("reconnection successful", "total_reconnects", c.reconnectsTotal.Load())
			return true
		}

		c.logError("reconnect failed", err)
		c.errorsTotal.Add(1)

		select {
		case <-c.done:
			return false
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * 1.5) //nolint:mnd // backoff multiplier
		if backoff > maxReconnectInterval {
			backoff = maxReconnectInterval
		}
	}
}

func (c *GatewayClient) currentConn() io.ReadWriteCloser {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn
}

// drainCallbackQueue discards any remaining queued telegrams.
func (c *GatewayClient) drainCallbackQueue() {
	for {
		select {
		case <-c.callbackQueue:
		default:
			return
		}
	}
}

func (c *GatewayClient) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close stops the receive loop and closes the transport.
// Safe to call multiple times.
func (c *GatewayClient) Close() error {
	c.doneOnce.Do(func() {
		close(c.done)

		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.connected = false
		c.connMu.Unlock()

		c.wg.Wait()
	})
	return nil
}

// Send transmits a telegram as a TRT frame.
//
// Parameters:
//   - ctx: Context for cancellation
//   - t: Telegram to send; Sender should be one of the gateway's base IDs
//
// Returns:
//   - error: ErrNotConnected, or ErrSendFailed wrapping the write error
func (c *GatewayClient) Send(ctx context.Context, t Telegram) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn := c.currentConn()
	if conn == nil {
		return ErrNotConnected
	}

	frame := t.Frame(HSeqTRT).Encode()

	c.writeMu.Lock()
	_, err := conn.Write(frame)
	c.writeMu.Unlock()
	if err != nil {
		c.errorsTotal.Add(1)
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	c.framesTx.Add(1)
	c.lastActivity.Store(time.Now().Unix())
	return nil
}

// SetOnTelegram sets the callback for received radio telegrams.
// Panics in the callback are recovered and logged.
func (c *GatewayClient) SetOnTelegram(callback func(Telegram)) {
	c.callbackMu.Lock()
	c.onTelegram = callback
	c.callbackMu.Unlock()
}

// SetLogger sets the logger for this client.
func (c *GatewayClient) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// IsConnected returns true if the transport is open.
func (c *GatewayClient) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// Stats returns current operational statistics.
func (c *GatewayClient) Stats() GatewayStats {
	return GatewayStats{
		FramesRx:         c.framesRx.Load(),
		FramesTx:         c.framesTx.Load(),
		BadFrames:        c.badFrames.Load(),
		TelegramsDropped: c.telegramsDropped.Load(),
		ErrorsTotal:      c.errorsTotal.Load(),
		ReconnectsTotal:  c.reconnectsTotal.Load(),
		LastActivity:     time.Unix(c.lastActivity.Load(), 0),
		Connected:        c.IsConnected(),
		Reconnecting:     c.reconnecting.Load(),
	}
}

// HealthCheck verifies the transport is open.
func (c *GatewayClient) HealthCheck(_ context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Address returns the configured gateway URL.
func (c *GatewayClient) Address() string {
	return c.opts.URL
}

func (c *GatewayClient) logInfo(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (c *GatewayClient) logDebug(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (c *GatewayClient) logError(msg string, err error) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

