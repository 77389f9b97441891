package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/store"
)

// migrations are applied in order; user_version records how many ran.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		query_id  INTEGER NOT NULL,
		kind      TEXT    NOT NULL,
		explainer TEXT    NOT NULL DEFAULT '',
		body      BLOB    NOT NULL,
		saved_at  TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
		PRIMARY KEY (query_id, kind, explainer)
	)`,
	`CREATE INDEX IF NOT EXISTS documents_query ON documents (query_id)`,
}

// Options customises the local cache.
type Options struct {
	Logger zerolog.Logger
}

// Store is a local SQLite cache of backend documents.
type Store struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

var _ store.Store = (*Store)(nil)

// Open opens (and creates, if needed) the cache at path and migrates it.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: empty path")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	s := &Store{db: db, path: path, logger: opts.Logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}
	if version >= len(migrations) {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := version; i < len(migrations); i++ {
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("sqlite: migration %d: %w", i+1, err)
		}
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, len(migrations))); err != nil {
		return fmt.Errorf("sqlite: write schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit migration: %w", err)
	}
	s.logger.Debug().Str("path", s.path).Int("from", version).Int("to", len(migrations)).Msg("migrated cache")
	return nil
}

func (s *Store) load(ctx context.Context, queryID int, kind store.Kind, explainer model.ExplainerType) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE query_id = ? AND kind = ? AND explainer = ?`,
		queryID, string(kind), string(explainer),
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load %s: %w", kind, err)
	}
	return body, nil
}

func (s *Store) save(ctx context.Context, queryID int, kind store.Kind, explainer model.ExplainerType, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (query_id, kind, explainer, body) VALUES (?, ?, ?, ?)
		 ON CONFLICT (query_id, kind, explainer) DO UPDATE SET body = excluded.body, saved_at = excluded.saved_at`,
		queryID, string(kind), string(explainer), body,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save %s: %w", kind, err)
	}
	s.logger.Debug().Int("query_id", queryID).Str("kind", string(kind)).Str("explainer", string(explainer)).Msg("saved document")
	return nil
}

// Plan implements store.Store.
func (s *Store) Plan(ctx context.Context, queryID int) (*model.Plan, error) {
	raw, err := s.load(ctx, queryID, store.KindPlan, "")
	if err != nil {
		return nil, err
	}
	return store.DecodePlan(raw)
}

// Explanation implements store.Store.
func (s *Store) Explanation(ctx context.Context, queryID int, explainer model.ExplainerType) (*model.Explanation, error) {
	raw, err := s.load(ctx, queryID, store.KindExplanation, explainer)
	if err != nil {
		return nil, err
	}
	return store.DecodeExplanation(raw, queryID, explainer)
}

// Prediction implements store.Store.
func (s *Store) Prediction(ctx context.Context, queryID int) (*model.Prediction, error) {
	raw, err := s.load(ctx, queryID, store.KindPrediction, "")
	if err != nil {
		return nil, err
	}
	return store.DecodePrediction(raw)
}

// Evaluations implements store.Store.
func (s *Store) Evaluations(ctx context.Context, queryID int) ([]model.EvaluationResult, error) {
	raw, err := s.load(ctx, queryID, store.KindEvaluations, "")
	if err != nil {
		return nil, err
	}
	return store.DecodeEvaluations(raw, queryID)
}

// SavePlan stores a raw plan document after checking that it parses.
func (s *Store) SavePlan(ctx context.Context, raw []byte) (int, error) {
	plan, err := store.DecodePlan(raw)
	if err != nil {
		return 0, err
	}
	return plan.ID, s.save(ctx, plan.ID, store.KindPlan, "", raw)
}

// SaveExplanation stores a raw explanation document. queryID and explainer
// are used when the document does not name them.
func (s *Store) SaveExplanation(ctx context.Context, queryID int, explainer model.ExplainerType, raw []byte) error {
	explanation, err := store.DecodeExplanation(raw, queryID, explainer)
	if err != nil {
		return err
	}
	if explanation.QueryID == 0 || explanation.Explainer == "" {
		return fmt.Errorf("sqlite: explanation needs a query id and an explainer type")
	}
	return s.save(ctx, explanation.QueryID, store.KindExplanation, explanation.Explainer, raw)
}

// SavePrediction stores a raw prediction document.
func (s *Store) SavePrediction(ctx context.Context, queryID int, raw []byte) error {
	if _, err := store.DecodePrediction(raw); err != nil {
		return err
	}
	return s.save(ctx, queryID, store.KindPrediction, "", raw)
}

// SaveEvaluations stores a raw evaluation document.
func (s *Store) SaveEvaluations(ctx context.Context, queryID int, raw []byte) error {
	if _, err := store.DecodeEvaluations(raw, queryID); err != nil {
		return err
	}
	return s.save(ctx, queryID, store.KindEvaluations, "", raw)
}

// SaveBundle stores a bundle fetched from another store, re-encoding each part.
func (s *Store) SaveBundle(ctx context.Context, bundle *store.Bundle) error {
	if bundle == nil || bundle.Plan == nil {
		return fmt.Errorf("sqlite: bundle has no plan")
	}
	queryID := bundle.Plan.ID

	planDoc, err := json.Marshal(encodePlan(bundle.Plan))
	if err != nil {
		return fmt.Errorf("sqlite: encode plan: %w", err)
	}
	if err := s.save(ctx, queryID, store.KindPlan, "", planDoc); err != nil {
		return err
	}
	for _, explanation := range bundle.Explanations {
		doc, err := json.Marshal(map[string]any{
			"queryId":          queryID,
			"explainerType":    explanation.Explainer,
			"executionTime":    explanation.ExecutionTime,
			"scaledImportance": explanation.ScaledImportance,
		})
		if err != nil {
			return fmt.Errorf("sqlite: encode explanation: %w", err)
		}
		if err := s.save(ctx, queryID, store.KindExplanation, explanation.Explainer, doc); err != nil {
			return err
		}
	}
	if bundle.Prediction != nil {
		doc, err := json.Marshal(bundle.Prediction)
		if err != nil {
			return fmt.Errorf("sqlite: encode prediction: %w", err)
		}
		if err := s.save(ctx, queryID, store.KindPrediction, "", doc); err != nil {
			return err
		}
	}
	if len(bundle.Evaluations) > 0 {
		doc, err := json.Marshal(bundle.Evaluations)
		if err != nil {
			return fmt.Errorf("sqlite: encode evaluations: %w", err)
		}
		if err := s.save(ctx, queryID, store.KindEvaluations, "", doc); err != nil {
			return err
		}
	}
	return nil
}

// Queries lists the query ids that have a cached plan.
func (s *Store) Queries(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT query_id FROM documents WHERE kind = ? ORDER BY query_id`, string(store.KindPlan))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list queries: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan query id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// encodePlan writes a plan back into the backend's document shape. Node
// attributes are stored flat under nodeInfo.
func encodePlan(plan *model.Plan) map[string]any {
	nodes := make([]map[string]any, 0, len(plan.Nodes))
	for _, node := range plan.Nodes {
		info := map[string]any{"nodeType": string(node.Type)}
		for k, v := range node.Attributes {
			info[k] = v
		}
		nodes = append(nodes, map[string]any{
			"nodeId":   node.ID,
			"label":    node.Label,
			"nodeInfo": info,
		})
	}
	edges := make([]map[string]int, 0, len(plan.Edges))
	for _, e := range plan.Edges {
		edges = append(edges, map[string]int{"from": e.From, "to": e.To})
	}

	doc := map[string]any{}
	for k, v := range plan.Extra {
		doc[k] = v
	}
	doc["id"] = plan.ID
	doc["sql"] = plan.SQL
	doc["dotGraph"] = plan.GraphDescription
	doc["planRuntime"] = plan.Runtime
	doc["graphNodes"] = nodes
	doc["edges"] = edges
	return doc
}
