package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"

	"github.com/rlch/spar"
	"github.com/rlch/spar/filter"
	"github.com/rlch/spar/model"
)

// Server answers JSON-RPC requests against a suite.
type Server struct {
	suite *model.Suite
	log   *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates a server over suite.
func NewServer(suite *model.Suite, opts ...Option) *Server {
	s := &Server{suite: suite, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Serve speaks JSON-RPC over rwc until the peer disconnects or ctx is done.
// A clean disconnect returns nil.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))
	sess := &session{server: s, conn: conn, ctx: ctx}

	pump := model.NewPump(sess.notifyChanged)
	unsubscribe := s.suite.Subscribe(pump.Notify)

	sess.wg.Add(1)

	go func() {
		defer sess.wg.Done()
		pump.Run(ctx)
	}()

	conn.Go(ctx, sess.handle)

	s.log.Info("rpc session started")

	select {
	case <-conn.Done():
	case <-ctx.Done():
		_ = conn.Close()
		<-conn.Done()
	}

	unsubscribe()
	cancel()
	sess.wg.Wait()

	err := conn.Err()
	if ctx.Err() != nil || closedConn(err) {
		err = nil
	}

	s.log.Info("rpc session ended", zap.Error(err))

	return err
}

func closedConn(err error) bool {
	return err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}

// session is one connection.
type session struct {
	server *Server
	conn   jsonrpc2.Conn
	ctx    context.Context
	wg     sync.WaitGroup
}

type method func(ctx context.Context, params json.RawMessage) (any, error)

func (s *session) methods() map[string]method {
	return map[string]method{
		MethodUnits:         s.units,
		MethodAddUnit:       s.addUnit,
		MethodRemoveUnit:    s.removeUnit,
		MethodRunAll:        s.runAll,
		MethodRunUnit:       s.runUnit,
		MethodTests:         s.tests,
		MethodResults:       s.results,
		MethodSelect:        s.selectTest,
		MethodDescription:   s.description,
		MethodToggleVisible: s.toggleVisible,
	}
}

// handle runs on the connection's read loop and must not block.
func (s *session) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	m, ok := s.methods()[req.Method()]
	if !ok {
		return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
	}

	result, err := m(ctx, req.Params())
	if err != nil {
		s.server.log.Debug("request failed", zap.String("method", req.Method()), zap.Error(err))

		return reply(ctx, nil, err)
	}

	return reply(ctx, result, nil)
}

func (s *session) notify(method string, params any) {
	err := s.conn.Notify(s.ctx, method, params)
	if err != nil && s.ctx.Err() == nil {
		s.server.log.Debug("notify failed", zap.String("method", method), zap.Error(err))
	}
}

func (s *session) notifyChanged(sigs []model.Signal) {
	for _, sig := range sigs {
		s.notify(NotifyChanged, ChangedParams{Signal: sig})
	}
}

func decode(params json.RawMessage, v any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}

	err := json.Unmarshal(params, v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	return nil
}

func (s *session) unit(params json.RawMessage) (*model.Unit, error) {
	var p UnitParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}

	u, ok := s.server.suite.Unit(p.Identifier)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrInvalidParams, model.ErrUnitNotFound, p.Identifier)
	}

	return u, nil
}

func (s *session) units(context.Context, json.RawMessage) (any, error) {
	units := s.server.suite.Units()

	out := make([]UnitInfo, len(units))
	for i, u := range units {
		out[i] = unitInfo(u)
	}

	return out, nil
}

func (s *session) addUnit(_ context.Context, params json.RawMessage) (any, error) {
	var p UnitParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}

	if p.Identifier == "" {
		return nil, fmt.Errorf("%w: identifier is required", ErrInvalidParams)
	}

	u, err := s.server.suite.AddUnit(p.Identifier)
	if err != nil {
		if errors.Is(err, spar.ErrNoEngine) || errors.Is(err, spar.ErrUnknownEngine) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}

		return nil, err
	}

	return unitInfo(u), nil
}

func (s *session) removeUnit(_ context.Context, params json.RawMessage) (any, error) {
	u, err := s.unit(params)
	if err != nil {
		return nil, err
	}

	return AcceptedResult{Accepted: s.server.suite.RemoveUnit(u.Identifier())}, nil
}

func (s *session) runAll(ctx context.Context, _ json.RawMessage) (any, error) {
	done, ok := s.server.suite.RunAll(ctx)
	if !ok {
		return AcceptedResult{}, nil
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		select {
		case report := <-done:
			s.notify(NotifyRunFinished, runFinishedParams(report))
		case <-s.ctx.Done():
		}
	}()

	return AcceptedResult{Accepted: true}, nil
}

func (s *session) runUnit(ctx context.Context, params json.RawMessage) (any, error) {
	u, err := s.unit(params)
	if err != nil {
		return nil, err
	}

	done, ok := u.Run(ctx)
	if !ok {
		return AcceptedResult{}, nil
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		select {
		case report := <-done:
			s.notify(NotifyUnitFinished, unitReportInfo(report))
		case <-s.ctx.Done():
		}
	}()

	return AcceptedResult{Accepted: true}, nil
}

func (s *session) tests(_ context.Context, params json.RawMessage) (any, error) {
	var p TestsParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}

	var where *filter.Filter

	if p.Filter != "" {
		f, err := filter.Parse(p.Filter)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}

		where = f
	}

	return model.Snapshots(where.Apply(s.server.suite.Tests())), nil
}

func (s *session) results(context.Context, json.RawMessage) (any, error) {
	out := []ResultInfo{}

	for _, u := range s.server.suite.Units() {
		for _, r := range u.Results() {
			out = append(out, ResultInfo{
				Unit:    u.Identifier(),
				Test:    r.Test,
				Kind:    string(r.Outcome.Kind()),
				Message: spar.Message(r.Outcome),
				Time:    r.Time,
			})
		}
	}

	return out, nil
}

func (s *session) selectTest(_ context.Context, params json.RawMessage) (any, error) {
	var p SelectParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}

	err := s.server.suite.SelectByName(p.Unit, p.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	return DescriptionResult{Description: s.server.suite.Description()}, nil
}

func (s *session) description(context.Context, json.RawMessage) (any, error) {
	return DescriptionResult{Description: s.server.suite.Description()}, nil
}

func (s *session) toggleVisible(_ context.Context, params json.RawMessage) (any, error) {
	u, err := s.unit(params)
	if err != nil {
		return nil, err
	}

	return VisibleResult{Visible: u.ToggleVisible()}, nil
}
