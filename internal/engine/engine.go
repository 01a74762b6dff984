package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/roach88/idlink/internal/ir"
	"github.com/roach88/idlink/internal/store"
)

// Engine runs identity reconciliation against a contact store.
//
// Every public operation is one store transaction. The store serializes
// write transactions, so overlapping identify requests never see each
// other's partial state and cannot both create a primary for the same
// identity.
//
// Thread-safety: Engine is safe for concurrent use.
type Engine struct {
	store  *store.Store
	logger *zap.Logger
	ids    RequestIDGenerator
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRequestIDGenerator sets the generator used when the context carries
// no request id. Defaults to UUIDv7Generator.
func WithRequestIDGenerator(g RequestIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// New creates an Engine over s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		logger: zap.NewNop(),
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the outcome of one identify request.
type Result struct {
	RequestID string
	View      ir.ContactView
	Outcome   Outcome

	// Dropped lists matched contacts whose link chain was broken.
	Dropped []int64
}

// Identify resolves q to its identity cluster, reconciling the store as
// needed, and returns the cluster's canonical view.
//
// Returns an ErrCodeInvalidRequest error without touching the store if q
// is empty, and an ErrCodeStoreFailure error if the transaction fails.
// A failed transaction leaves no writes behind.
func (e *Engine) Identify(ctx context.Context, q ir.Query) (*Result, error) {
	if q.Empty() {
		return nil, NewInvalidRequestError()
	}

	reqID := e.requestID(ctx)
	log := e.logger.With(zap.String("request_id", reqID))

	var res *Result
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		// Reset per attempt; InTx may retry.
		res = nil

		candidates, err := tx.FindActiveByEmailOrPhone(ctx, q.Email, q.PhoneNumber)
		if err != nil {
			return err
		}

		resolution, err := Resolve(ctx, tx, candidates)
		if err != nil {
			return err
		}

		outcome, err := Reconcile(ctx, tx, q, resolution.Primaries)
		if err != nil {
			return err
		}

		view, err := BuildView(ctx, tx, outcome.PrimaryID)
		if err != nil {
			return err
		}

		log.Debug("identify resolved",
			zap.Int("candidates", len(candidates)),
			zap.Int64s("primaries", resolution.PrimaryIDs()),
			zap.Int64s("dropped", resolution.Dropped),
			zap.Int64("primary_id", outcome.PrimaryID),
			zap.Int64s("demoted", outcome.Demoted),
			zap.Int64s("relinked", outcome.Relinked),
			zap.Bool("created", outcome.Created != nil),
		)

		res = &Result{
			RequestID: reqID,
			View:      view,
			Outcome:   outcome,
			Dropped:   resolution.Dropped,
		}
		return nil
	})
	if err != nil {
		return nil, classify(log, "identify", err)
	}

	if len(res.Dropped) > 0 {
		log.Warn("dropped contacts with broken link chains", zap.Int64s("contact_ids", res.Dropped))
	}
	return res, nil
}

// Cluster returns the view of the cluster containing contact id.
// id may name the primary or any secondary.
func (e *Engine) Cluster(ctx context.Context, id int64) (ir.ContactView, error) {
	var view ir.ContactView
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		c, err := tx.FindByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return NewNotFoundError(id)
		}
		if err != nil {
			return err
		}

		resolution, err := Resolve(ctx, tx, []ir.Contact{c})
		if err != nil {
			return err
		}
		if len(resolution.Primaries) == 0 {
			return NewBrokenLinkError(id)
		}

		view, err = BuildView(ctx, tx, resolution.Primaries[0].ID)
		return err
	})
	if err != nil {
		return ir.ContactView{}, classify(e.requestLogger(ctx), "cluster", err)
	}
	return view, nil
}

// SoftDelete marks contact id as deleted. It stops matching and leaves
// every view, but the row is kept.
//
// Deleting a primary does not promote a replacement; its secondaries are
// left with broken chains until an operator repairs them. Audit reports
// them.
func (e *Engine) SoftDelete(ctx context.Context, id int64) error {
	log := e.requestLogger(ctx)

	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		err := tx.SoftDelete(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return NewNotFoundError(id)
		}
		return err
	})
	if err != nil {
		return classify(log, "soft delete", err)
	}

	log.Info("contact soft-deleted", zap.Int64("contact_id", id))
	return nil
}

// Stats summarizes the contact table.
type Stats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// Stats returns row counts, soft-deleted rows included in Total.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		st.Total, st.Active, err = tx.CountContacts(ctx)
		return err
	})
	if err != nil {
		return Stats{}, classify(e.requestLogger(ctx), "stats", err)
	}
	return st, nil
}

// classify passes engine errors through and wraps everything else as a
// store failure. Store failures are logged here and nowhere else.
func classify(log *zap.Logger, op string, err error) error {
	var ee *Error
	if errors.As(err, &ee) {
		return ee
	}
	log.Error(op+" failed", zap.Error(err))
	return NewStoreError(err)
}

// requestLogger returns the engine logger tagged with the request id for ctx.
func (e *Engine) requestLogger(ctx context.Context) *zap.Logger {
	return e.logger.With(zap.String("request_id", e.requestID(ctx)))
}

func (e *Engine) requestID(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	return e.ids.Generate()
}
