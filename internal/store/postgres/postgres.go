package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/store"
)

const (
	planQuery        = `SELECT document FROM plans WHERE id = $1`
	explanationQuery = `SELECT document FROM explanations WHERE query_id = $1 AND explainer_type = $2 ORDER BY created_at DESC LIMIT 1`
	predictionQuery  = `SELECT document FROM predictions WHERE query_id = $1 ORDER BY created_at DESC LIMIT 1`
	evaluationsQuery = `SELECT document FROM evaluations WHERE query_id = $1 ORDER BY created_at`
)

// Options customises how the store talks to PostgreSQL.
type Options struct {
	// Timeout bounds every query. Zero means no limit beyond the caller's context.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Store reads backend documents from PostgreSQL jsonb columns.
type Store struct {
	pool *pgxpool.Pool
	opts Options
}

var _ store.Store = (*Store)(nil)

// Open connects to the database behind dsn.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres: empty DSN")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool, opts: opts}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout > 0 {
		return context.WithTimeout(ctx, s.opts.Timeout)
	}
	return ctx, func() {}
}

func (s *Store) document(ctx context.Context, what, query string, args ...any) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var payload []byte
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.opts.Logger.Debug().Str("document", what).Interface("args", args).Msg("document not found")
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: query %s: %w", what, err)
	}
	return payload, nil
}

// Plan implements store.Store.
func (s *Store) Plan(ctx context.Context, queryID int) (*model.Plan, error) {
	raw, err := s.document(ctx, string(store.KindPlan), planQuery, queryID)
	if err != nil {
		return nil, err
	}
	return store.DecodePlan(raw)
}

// Explanation implements store.Store.
func (s *Store) Explanation(ctx context.Context, queryID int, explainer model.ExplainerType) (*model.Explanation, error) {
	raw, err := s.document(ctx, string(store.KindExplanation), explanationQuery, queryID, string(explainer))
	if err != nil {
		return nil, err
	}
	return store.DecodeExplanation(raw, queryID, explainer)
}

// Prediction implements store.Store.
func (s *Store) Prediction(ctx context.Context, queryID int) (*model.Prediction, error) {
	raw, err := s.document(ctx, string(store.KindPrediction), predictionQuery, queryID)
	if err != nil {
		return nil, err
	}
	return store.DecodePrediction(raw)
}

// Evaluations implements store.Store. Every stored row contributes its results.
func (s *Store) Evaluations(ctx context.Context, queryID int) ([]model.EvaluationResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, evaluationsQuery, queryID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query evaluations: %w", err)
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan evaluations: %w", err)
	}
	if len(docs) == 0 {
		return nil, store.ErrNotFound
	}

	var out []model.EvaluationResult
	for _, raw := range docs {
		evals, err := store.DecodeEvaluations(raw, queryID)
		if err != nil {
			return nil, err
		}
		out = append(out, evals...)
	}
	return out, nil
}
