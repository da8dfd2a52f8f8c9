package bridge

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/jvsctl/internal/observability"
	"github.com/danmuck/jvsctl/internal/protocol/jvs"
	"github.com/danmuck/jvsctl/internal/transport"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

var (
	ErrNotConnected  = errors.New("bridge: transport not connected")
	ErrOpenExhausted = errors.New("bridge: transport open attempts exhausted")
)

const (
	DirectionRX = "rx"
	DirectionTX = "tx"
)

// ServiceConfig configures the bridge daemon.
type ServiceConfig struct {
	Name            string
	Transport       transport.Config
	LengthCheck     jvs.LengthCheck
	Hexdump         bool
	AdminListenAddr string
	// AdminToken guards POST /frames when set.
	AdminToken      string
	CorsOrigins     []string
	Reopen          BackoffConfig
	// MaxOpenAttempts bounds consecutive failed opens. Zero retries forever.
	MaxOpenAttempts int
	TapBuffer       int
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:            "jvsd",
		Transport:       transport.Config{Kind: transport.KindSerial, Device: "/dev/ttyUSB0", Baud: transport.DefaultBaud},
		LengthCheck:     jvs.LengthCheckBlocking,
		AdminListenAddr: "127.0.0.1:7020",
		Reopen:          DefaultBackoffConfig(),
		TapBuffer:       64,
	}
}

// Opener connects a transport. Tests swap it for in-memory pairs.
type Opener func(ctx context.Context, cfg transport.Config) (transport.Conn, error)

type ServiceOption func(*Service)

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = logger
	}
}

func WithOpener(open Opener) ServiceOption {
	return func(s *Service) {
		s.open = open
	}
}

// Counters are cumulative frame outcomes since start.
type Counters struct {
	Received         uint64 `json:"received"`
	Valid            uint64 `json:"valid"`
	ChecksumFailures uint64 `json:"checksum_failures"`
	LengthMismatches uint64 `json:"length_mismatches"`
	OtherErrors      uint64 `json:"other_errors"`
	Dropped          uint64 `json:"dropped_bytes"`
	Sent             uint64 `json:"sent"`
	SendFailures     uint64 `json:"send_failures"`
	Opens            uint64 `json:"opens"`
}

type counters struct {
	received         atomic.Uint64
	valid            atomic.Uint64
	checksumFailures atomic.Uint64
	lengthMismatches atomic.Uint64
	otherErrors      atomic.Uint64
	dropped          atomic.Uint64
	sent             atomic.Uint64
	sendFailures     atomic.Uint64
	opens            atomic.Uint64
}

// Status is the admin view of the service.
type Status struct {
	Name        string   `json:"name"`
	Transport   string   `json:"transport"`
	Connected   bool     `json:"connected"`
	LengthCheck string   `json:"length_check"`
	Uptime      string   `json:"uptime"`
	Subscribers int      `json:"subscribers"`
	Counters    Counters `json:"counters"`
}

// Service owns one transport at a time, runs the receive loop over it and
// exposes the admin API.
type Service struct {
	cfg     ServiceConfig
	log     zerolog.Logger
	open    Opener
	tap     *Tap
	started time.Time
	rng     *rand.Rand

	mu      sync.RWMutex
	conn    transport.Conn
	handler *jvs.Handler
	last    jvs.Frame
	hasLast bool

	seq      atomic.Uint64
	counters counters

	routerOnce sync.Once
	router     *gin.Engine
}

func NewService(cfg ServiceConfig, opts ...ServiceOption) *Service {
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "jvsd"
	}
	cfg.Transport = cfg.Transport.WithDefaults()
	s := &Service{
		cfg:     cfg,
		log:     zerolog.Nop(),
		open:    transport.Open,
		started: time.Now(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("node", cfg.Name).Logger()
	s.tap = NewTap(cfg.TapBuffer, s.log)
	return s
}

func (s *Service) Tap() *Tap {
	return s.tap
}

// Run serves the admin API (when configured) and the receive loop until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	observability.RegisterMetrics()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	if addr := strings.TrimSpace(s.cfg.AdminListenAddr); addr != "" {
		srv := &http.Server{Addr: addr, Handler: s.Router()}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.log.Info().Str("addr", addr).Msg("admin api listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("bridge: admin server: %w", err)
				cancel()
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Serve(ctx); err != nil {
			errCh <- err
			cancel()
		}
	}()

	wg.Wait()
	s.tap.Close()
	close(errCh)
	return <-errCh
}

// Serve opens the transport, reopening with backoff whenever it fails, and
// decodes frames until ctx ends.
func (s *Service) Serve(ctx context.Context) error {
	kind := s.cfg.Transport.Kind
	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := s.open(ctx, s.cfg.Transport)
		observability.RecordTransportOpen(kind, err == nil)
		if err != nil {
			attempt++
			if s.cfg.MaxOpenAttempts > 0 && attempt >= s.cfg.MaxOpenAttempts {
				return fmt.Errorf("%w after %d attempts: %w", ErrOpenExhausted, attempt, err)
			}
			delay := NextBackoffDelay(s.cfg.Reopen, attempt, s.rng)
			s.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("transport open failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}

		attempt = 0
		s.counters.opens.Add(1)
		h := s.attach(conn)
		s.log.Info().Str("transport", conn.Name()).Str("length_check", h.LengthCheck().String()).Msg("transport attached")

		err = s.receiveLoop(ctx, conn, h)
		cause := transportCause(conn)
		s.detach(conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		ev := s.log.Warn().Err(err).Str("transport", conn.Name())
		if cause != nil {
			ev = ev.AnErr("cause", cause)
		}
		ev.Msg("transport lost")
	}
}

// transportCause returns the error that stopped a pumped transport, if any.
func transportCause(conn transport.Conn) error {
	if src, ok := conn.(interface{ Err() error }); ok {
		return src.Err()
	}
	return nil
}

func (s *Service) attach(conn transport.Conn) *jvs.Handler {
	diag := zerolog.Nop()
	if s.cfg.Hexdump {
		diag = s.log.With().Str("component", "jvs").Str("transport", conn.Name()).Logger()
	}
	h := jvs.NewHandler(conn, jvs.WithLogger(diag), jvs.WithLengthCheck(s.cfg.LengthCheck))
	s.mu.Lock()
	s.conn = conn
	s.handler = h
	s.mu.Unlock()
	return h
}

func (s *Service) detach(conn transport.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
		s.handler = nil
	}
	s.mu.Unlock()
}

func (s *Service) receiveLoop(ctx context.Context, conn transport.Conn, h *jvs.Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		dropped, err := h.Resync()
		if dropped > 0 {
			s.counters.dropped.Add(uint64(dropped))
		}
		if err != nil {
			return err
		}
		frame, err := h.ReceiveAfterSync()
		s.recordReceive(conn.Name(), frame, err)
		if err != nil && !isFrameError(err) {
			return err
		}
	}
}

// isFrameError reports failures local to one frame; the loop keeps going.
func isFrameError(err error) bool {
	return errors.Is(err, jvs.ErrChecksumMismatch) ||
		errors.Is(err, jvs.ErrLengthMismatch) ||
		errors.Is(err, jvs.ErrInvalidLength) ||
		errors.Is(err, jvs.ErrBadSync)
}

func (s *Service) recordReceive(name string, frame jvs.Frame, err error) {
	observability.RecordReceive(name, frame, err)
	s.counters.received.Add(1)
	switch {
	case err == nil:
		s.counters.valid.Add(1)
	case errors.Is(err, jvs.ErrChecksumMismatch):
		s.counters.checksumFailures.Add(1)
	case errors.Is(err, jvs.ErrLengthMismatch):
		s.counters.lengthMismatches.Add(1)
	default:
		s.counters.otherErrors.Add(1)
	}

	if err == nil || isFrameError(err) {
		s.mu.Lock()
		s.last = frame
		s.hasLast = true
		s.mu.Unlock()
	}

	event := s.event(DirectionRX, name, frame.Payload, frame.Length, frame.Status, err)
	if err != nil {
		s.log.Warn().Err(err).Int("length", frame.Length).Msg("frame rejected")
	} else {
		s.log.Debug().Int("length", frame.Length).Str("payload", event.Payload).Msg("frame received")
	}
	s.tap.Publish(event)
}

func (s *Service) event(dir, name string, payload []byte, length int, status bool, err error) FrameEvent {
	ev := FrameEvent{
		Seq:       s.seq.Add(1),
		Time:      time.Now().UTC(),
		Direction: dir,
		Transport: name,
		Payload:   hex.EncodeToString(payload),
		Length:    length,
		Status:    status,
		Result:    observability.Result(err),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// Send frames payload onto the attached transport.
func (s *Service) Send(payload []byte) error {
	s.mu.RLock()
	h, conn := s.handler, s.conn
	s.mu.RUnlock()
	if h == nil || conn == nil {
		return ErrNotConnected
	}

	err := h.Send(payload)
	observability.RecordSend(conn.Name(), err)
	if err != nil {
		s.counters.sendFailures.Add(1)
	} else {
		s.counters.sent.Add(1)
	}
	s.tap.Publish(s.event(DirectionTX, conn.Name(), payload, len(payload), err == nil, err))
	return err
}

// LastFrame returns the most recent frame outcome, if any frame was seen.
func (s *Service) LastFrame() (jvs.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.hasLast
}

func (s *Service) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn != nil
}

func (s *Service) Status() Status {
	s.mu.RLock()
	name := s.cfg.Transport.Kind
	if s.conn != nil {
		name = s.conn.Name()
	}
	connected := s.conn != nil
	s.mu.RUnlock()

	return Status{
		Name:        s.cfg.Name,
		Transport:   name,
		Connected:   connected,
		LengthCheck: s.cfg.LengthCheck.String(),
		Uptime:      time.Since(s.started).Truncate(time.Second).String(),
		Subscribers: s.tap.Count(),
		Counters: Counters{
			Received:         s.counters.received.Load(),
			Valid:            s.counters.valid.Load(),
			ChecksumFailures: s.counters.checksumFailures.Load(),
			LengthMismatches: s.counters.lengthMismatches.Load(),
			OtherErrors:      s.counters.otherErrors.Load(),
			Dropped:          s.counters.dropped.Load(),
			Sent:             s.counters.sent.Load(),
			SendFailures:     s.counters.sendFailures.Load(),
			Opens:            s.counters.opens.Load(),
		},
	}
}
