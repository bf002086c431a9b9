// Package server implements the TCP front end: an accept loop that
// serves one client connection at a time over the line protocol of
// internal/protocol, delegating each query to internal/sql.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"matidb/internal/protocol"
	"matidb/internal/sql"
	"matidb/internal/storage"
	"matidb/internal/telemetry"
)

// Server owns the listener and the single storage engine every
// connection shares. Concurrency across clients is an explicit
// non-goal of the engine it wraps, so Run serves connections strictly
// one at a time on its own goroutine rather than spawning a handler
// per connection.
type Server struct {
	engine   *storage.Engine
	listener net.Listener
	metrics  *telemetry.Metrics
	log      *zap.SugaredLogger
}

// New binds addr and wraps engine for serving. metrics may be nil, in
// which case no instruments are reported.
func New(addr string, engine *storage.Engine, metrics *telemetry.Metrics, log *zap.SugaredLogger) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", addr, err)
	}
	return &Server{engine: engine, listener: listener, metrics: metrics, log: log}, nil
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Run accepts connections until the listener is closed, serving each
// one to completion before accepting the next. On every disconnect
// (clean or not) it flushes the engine, the checkpoint of spec section
// 4.3(iii).
func (s *Server) Run() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warnw("accept failed", "error", err)
			continue
		}

		if s.metrics != nil {
			s.metrics.Connections.Add(context.Background(), 1)
		}
		s.serveConnection(conn)

		if err := s.engine.Flush(); err != nil {
			s.log.Warnw("post-session flush failed", "error", err)
		}
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) serveConnection(conn net.Conn) {
	sessionID := uuid.New().String()
	peer := conn.RemoteAddr().String()
	log := s.log.With("session", sessionID, "peer", peer)
	log.Infow("client connected")
	defer func() {
		conn.Close()
		log.Infow("client disconnected")
	}()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	for {
		line, err := protocol.ReadQuery(reader)
		if err != nil {
			if !errors.Is(err, protocol.ErrConnectionClosed) {
				log.Warnw("error reading query", "error", err)
			}
			return
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		resp := s.dispatch(trimmed, log)
		if err := resp.WriteTo(writer); err != nil {
			log.Warnw("error writing response", "error", err)
			return
		}
		if shouldDisconnect(trimmed) {
			return
		}
	}
}

func shouldDisconnect(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit":
		return true
	default:
		return false
	}
}

// dispatch handles the built-in words (tables/flush/exit/quit) directly
// and routes everything else through internal/sql.
func (s *Server) dispatch(line string, log *zap.SugaredLogger) protocol.Response {
	switch strings.ToLower(line) {
	case "exit", "quit":
		return protocol.OK("Goodbye")
	case "tables":
		return protocol.OK(listTables(s.engine))
	case "flush":
		if err := s.engine.Flush(); err != nil {
			return protocol.Err(err.Error())
		}
		return protocol.OK("All pages flushed to disk")
	default:
		return executeLine(s.engine, s.metrics, line, log)
	}
}

// listTables renders the catalog's table names, one per line, or a
// friendly message when there are none.
func listTables(engine *storage.Engine) string {
	tables := engine.ListTables()
	if len(tables) == 0 {
		return "No tables"
	}
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return strings.Join(names, "\n")
}

// executeLine parses line as one or more ';'-separated statements and
// runs them in order, stopping at the first error.
func executeLine(engine *storage.Engine, metrics *telemetry.Metrics, line string, log *zap.SugaredLogger) protocol.Response {
	stmts, err := sql.Parse(line)
	if err != nil {
		return protocol.Err(err.Error())
	}

	var results []string
	for _, stmt := range stmts {
		result, err := sql.Execute(engine, stmt)
		if err != nil {
			log.Debugw("statement failed", "error", err)
			return protocol.Err(err.Error())
		}
		results = append(results, result)
		reportMetrics(metrics, stmt)
	}
	return protocol.OK(strings.Join(results, "\n"))
}

// reportMetrics increments the query counter for every executed
// statement, and the rows-inserted counter by the number of rows an
// INSERT statement added.
func reportMetrics(metrics *telemetry.Metrics, stmt sql.Statement) {
	if metrics == nil {
		return
	}
	ctx := context.Background()
	metrics.QueriesHandled.Add(ctx, 1)
	if ins, ok := stmt.(*sql.InsertStmt); ok {
		metrics.RowsInserted.Add(ctx, int64(len(ins.Rows)))
	}
}
