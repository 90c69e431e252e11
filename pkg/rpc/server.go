package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/anna-project/annad/pkg/advice"
	"github.com/anna-project/annad/pkg/events"
	"github.com/anna-project/annad/pkg/executor"
	"github.com/anna-project/annad/pkg/facts"
	"github.com/anna-project/annad/pkg/models"
	"github.com/anna-project/annad/pkg/probe"
	"github.com/anna-project/annad/pkg/qa"
	"github.com/anna-project/annad/pkg/recipe"
	"github.com/anna-project/annad/pkg/rollback"
	"github.com/anna-project/annad/pkg/scheduler"
	"github.com/anna-project/annad/pkg/telemetry"
)

// DefaultCallTimeout is the standard per-RPC-call budget (§5).
const DefaultCallTimeout = 5 * time.Second

// ExpensiveCallTimeout applies to orchestrated_query and historian_summary.
const ExpensiveCallTimeout = 10 * time.Second

// expensiveMethods get ExpensiveCallTimeout instead of DefaultCallTimeout.
var expensiveMethods = map[string]bool{
	"orchestrated_query": true,
	"historian_summary":  true,
}

// LoopFactory builds a fresh Q&A Loop for one orchestrated query, wired to
// publisher so its Debug Events reach the calling connection's subscribers.
type LoopFactory func(publisher *events.Publisher) *qa.Loop

// Server is the RPC Server (§4.11): one listener, one goroutine per
// accepted connection, dispatching NDJSON request frames to typed
// handlers and writing back NDJSON response frames.
type Server struct {
	config    *ConfigHolder
	facts     *facts.Store
	telemetry *telemetry.Store
	probes    *probe.Registry
	scheduler *scheduler.Scheduler
	adviceEng *advice.Engine
	recipes   *recipe.Registry
	executor  *executor.Executor
	ledger    *rollback.Ledger
	events    *events.Manager
	loopFn    LoopFactory
	logger    *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

// Deps collects every component a Server dispatches RPC methods into.
// Any field may be nil for a partially-wired test server; handlers that
// depend on a nil field return ErrInternal.
type Deps struct {
	Config    *ConfigHolder
	Facts     *facts.Store
	Telemetry *telemetry.Store
	Probes    *probe.Registry
	Scheduler *scheduler.Scheduler
	Advice    *advice.Engine
	Recipes   *recipe.Registry
	Executor  *executor.Executor
	Ledger    *rollback.Ledger
	Events    *events.Manager
	LoopFn    LoopFactory
	Logger    *slog.Logger
}

// NewServer constructs a Server from its dependency bundle.
func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	evts := d.Events
	if evts == nil {
		evts = events.NewManager()
	}
	return &Server{
		config:    d.Config,
		facts:     d.Facts,
		telemetry: d.Telemetry,
		probes:    d.Probes,
		scheduler: d.Scheduler,
		adviceEng: d.Advice,
		recipes:   d.Recipes,
		executor:  d.Executor,
		ledger:    d.Ledger,
		events:    evts,
		loopFn:    d.LoopFn,
		logger:    logger,
		stopCh:    make(chan struct{}),
		conns:     make(map[net.Conn]struct{}),
	}
}

// Serve accepts connections on ln until Stop is called or ln closes. Each
// accepted connection is served by its own goroutine (§5: "The RPC server
// spawns one task per accepted connection").
func (s *Server) Serve(ln net.Listener) {
	s.listener = ln
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.logger.Error("rpc accept failed", "error", err)
				return
			}
		}
		s.connsMu.Lock()
		s.conns[conn] = struct{}{}
		s.connsMu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

// Stop closes the listener and every currently-accepted connection, then
// waits for their serving goroutines to return. Closing the connections
// (not just the listener) is what lets Stop return promptly: a client that
// never closes its side would otherwise leave serveConn's blocking Scan()
// call running forever.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.connsMu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.connsMu.Unlock()
	})
	s.wg.Wait()
}

func (s *Server) serveConn(conn net.Conn) {
	defer func() {
		conn.Close()
		s.connsMu.Lock()
		delete(s.conns, conn)
		s.connsMu.Unlock()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	encoder := json.NewEncoder(conn)
	var writeMu sync.Mutex

	write := func(resp Response) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = encoder.Encode(resp)
	}

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			write(Response{Error: &ErrorObject{
				Code:    models.RPCCodeInvalidRequest,
				Message: "malformed request frame: " + err.Error(),
				Kind:    string(models.ErrValidationFailed),
			}, StreamEnd: true})
			continue
		}
		s.dispatch(conn, req, write)
	}
}

func (s *Server) dispatch(conn net.Conn, req Request, write func(Response)) {
	handler, ok := unaryHandlers[req.Method]
	if ok {
		timeout := DefaultCallTimeout
		if expensiveMethods[req.Method] {
			timeout = ExpensiveCallTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		result, err := handler(s, ctx, req.Params)
		if err != nil {
			write(errorResponse(req.ID, err))
			return
		}
		write(Response{ID: req.ID, Result: mustMarshal(result), StreamEnd: true})
		return
	}

	streamHandler, ok := streamHandlers[req.Method]
	if ok {
		ctx, cancel := context.WithTimeout(context.Background(), ExpensiveCallTimeout)
		defer cancel()
		streamHandler(s, ctx, req, write)
		return
	}

	write(Response{
		ID: req.ID,
		Error: &ErrorObject{
			Code:    models.RPCCodeMethodNotFound,
			Message: "unknown method: " + req.Method,
			Kind:    string(models.ErrInternal),
		},
		StreamEnd: true,
	})
}

func errorResponse(id int64, err error) Response {
	if herr, ok := err.(*handlerError); ok {
		return Response{ID: id, Error: &ErrorObject{
			Code:    codeForKind(herr.kind),
			Message: herr.message,
			Kind:    string(herr.kind),
		}, StreamEnd: true}
	}
	return Response{ID: id, Error: &ErrorObject{
		Code:    models.RPCCodeInternal,
		Message: err.Error(),
		Kind:    string(models.ErrInternal),
	}, StreamEnd: true}
}
