package wire

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"vaultex/internal/common"
	"vaultex/internal/engine"
	"vaultex/internal/workerpool"
)

const (
	maxRecvSize        = 4 * 1024
	defaultConnTimeout = time.Second
)

// clientSession tracks one connected TCP client, addressable by its
// username for routing reports.
type clientSession struct {
	conn net.Conn
}

// clientMessage links a parsed frame to the client session it arrived on.
type clientMessage struct {
	owner   string
	address string
	parsed  ParsedMessage
}

// Server is the TCP front-end: it owns a single Engine and serializes every
// ProcessOrder call through its sessionHandler goroutine, following the
// teacher's net.Server/sessionHandler split.
type Server struct {
	address string
	eng     *engine.Engine
	stid    uint64

	pool     *workerpool.Pool
	cancel   context.CancelFunc
	sessions map[string]clientSession // by connection address, for error reports before an owner is known
	byOwner  map[string]string        // owner username -> connection address, learned from NewOrder frames
	mu       sync.Mutex
	inbox    chan clientMessage
}

// New returns a server bound to address, serializing requests against eng.
func New(address string, eng *engine.Engine, workers int) *Server {
	return &Server{
		address:  address,
		eng:      eng,
		pool:     workerpool.New(workers),
		sessions: make(map[string]clientSession),
		byOwner:  make(map[string]string),
		inbox:    make(chan clientMessage, 1),
	}
}

// Shutdown cancels the server's context, unwinding the listener and pool.
func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run starts the listener, worker pool, and session handler, and blocks
// accepting connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("starting listener: %w", err)
	}
	defer listener.Close()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", s.address).Msg("server running")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}
			log.Info().Str("address", conn.RemoteAddr().String()).Msg("new client connected")
			s.addSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

func (s *Server) addSession(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[conn.RemoteAddr().String()] = clientSession{conn: conn}
}

func (s *Server) removeSession(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, address)
	for owner, addr := range s.byOwner {
		if addr == address {
			delete(s.byOwner, owner)
		}
	}
}

func (s *Server) registerOwner(owner, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOwner[owner] = address
}

// handleConnection is a short-lived pool worker: it reads exactly one frame
// off conn, parses it, and hands it to the session handler, then re-queues
// the connection for its next frame.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return fmt.Errorf("expected net.Conn task, got %T", task)
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Msg("failed setting connection deadline")
		return nil
	}

	buf := make([]byte, maxRecvSize)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buf)
		if err != nil {
			log.Debug().Err(err).Str("address", conn.RemoteAddr().String()).Msg("connection read failed")
			s.removeSession(conn.RemoteAddr().String())
			conn.Close()
			return nil
		}

		parsed, err := ParseMessage(buf[:n])
		if err != nil {
			log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("error parsing frame")
			s.removeSession(conn.RemoteAddr().String())
			conn.Close()
			return nil
		}

		owner := ""
		if parsed.NewOrder != nil {
			owner = parsed.NewOrder.Username
			s.registerOwner(owner, conn.RemoteAddr().String())
		}
		s.inbox <- clientMessage{owner: owner, address: conn.RemoteAddr().String(), parsed: parsed}
		s.pool.AddTask(conn)
	}
	return nil
}

// sessionHandler is the single goroutine through which every ProcessOrder
// call is serialized, per the engine's single-writer requirement.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case msg := <-s.inbox:
			if err := s.handle(msg); err != nil {
				log.Error().Err(err).Str("address", msg.address).Msg("error handling message")
				s.reportError(msg.address, err)
			}
		}
	}
}

func (s *Server) handle(msg clientMessage) error {
	switch msg.parsed.Type {
	case NewOrder:
		return s.handleNewOrder(msg)
	case CancelOrder:
		return s.reportError(msg.address, ErrUnsupported)
	case LogBook, Heartbeat:
		return nil
	default:
		return ErrInvalidMessageType
	}
}

func (s *Server) handleNewOrder(msg clientMessage) error {
	m := msg.parsed.NewOrder
	s.stid++

	order := common.Order{
		ID:            common.OrderID(fmt.Sprintf("%s-%d", m.Username, s.stid)),
		MainAccount:   common.AccountId(m.Username),
		Pair:          common.TradingPair{Base: m.Base, Quote: m.Quote},
		Side:          m.Side,
		Type:          m.Type,
		Price:         m.Price,
		Qty:           m.Qty,
		QuoteOrderQty: m.QuoteOrderQty,
	}

	result, err := s.eng.ProcessOrder(order, s.stid)
	if err != nil {
		return err
	}

	for _, trade := range result.Trades {
		s.sendReport(trade.Maker.MainAccount, Report{
			Type: ExecutionReport, Side: trade.Maker.Side, Price: trade.Price, Quantity: trade.Amount,
			OrderID: trade.Maker.ID, Counterparty: string(trade.Taker.MainAccount),
		})
		s.sendReport(trade.Taker.MainAccount, Report{
			Type: ExecutionReport, Side: trade.Taker.Side, Price: trade.Price, Quantity: trade.Amount,
			OrderID: trade.Taker.ID, Counterparty: string(trade.Maker.MainAccount),
		})
	}
	return nil
}

func (s *Server) sendReport(owner common.AccountId, report Report) {
	s.mu.Lock()
	address, ok := s.byOwner[string(owner)]
	if !ok {
		s.mu.Unlock()
		log.Debug().Str("owner", string(owner)).Msg("no connected session for report recipient")
		return
	}
	sess, ok := s.sessions[address]
	s.mu.Unlock()
	if !ok {
		return
	}
	if _, err := sess.conn.Write(report.Serialize()); err != nil {
		log.Error().Err(err).Str("owner", string(owner)).Msg("failed writing report")
		s.removeSession(address)
	}
}

func (s *Server) reportError(address string, err error) error {
	s.mu.Lock()
	sess, ok := s.sessions[address]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no session for address %s", address)
	}
	_, writeErr := sess.conn.Write(Report{Type: ErrorReport, Err: err.Error()}.Serialize())
	return writeErr
}
