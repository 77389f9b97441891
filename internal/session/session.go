// Package session scopes colours, selection and data to the active query and
// re-derives the analysis whenever any of them changes.
package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mickamy/planlens/internal/analyzer"
	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/palette"
	"github.com/mickamy/planlens/internal/selection"
)

// Key tags data with the query and the session generation it was requested for.
type Key struct {
	QueryID int
	Token   uuid.UUID
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s", k.QueryID, k.Token)
}

// Options configure a session.
type Options struct {
	Logger     zerolog.Logger
	Palette    []string
	Explainers []model.ExplainerType
	Analyzer   analyzer.Options
}

// Listener receives each new snapshot.
type Listener func(*analyzer.Analysis)

// Session owns exactly one colour assigner and one selection per active query.
// It is safe for concurrent use. Listeners run synchronously after each change.
type Session struct {
	mu        sync.Mutex
	logger    zerolog.Logger
	opts      Options
	colors    *palette.Assigner
	selection *selection.Coordinator

	key          Key
	plan         *model.Plan
	explanations map[model.ExplainerType]model.Explanation
	prediction   *model.Prediction
	evaluations  []model.EvaluationResult
	snapshot     *analyzer.Analysis

	listeners []Listener
}

// New returns a session with no active query.
func New(opts Options) *Session {
	s := &Session{
		logger:       opts.Logger,
		opts:         opts,
		colors:       palette.NewAssigner(opts.Palette, palette.WithLogger(opts.Logger)),
		selection:    selection.New(),
		explanations: map[model.ExplainerType]model.Explanation{},
	}
	if len(s.opts.Explainers) == 0 {
		s.opts.Explainers = model.ExplainerTypes
	}
	s.opts.Analyzer.Logger = opts.Logger
	s.selection.Subscribe(func(selection.State) { s.rederive() })
	return s
}

// OnChange registers fn for every new snapshot and returns an unsubscribe func.
func (s *Session) OnChange(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
	idx := len(s.listeners) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.listeners) {
			s.listeners[idx] = nil
		}
	}
}

// SetQuery makes plan the active query. Colours, selection and all data of
// the previous query are dropped and a fresh key is issued.
func (s *Session) SetQuery(queryID int, plan *model.Plan) Key {
	s.mu.Lock()
	s.key = Key{QueryID: queryID, Token: uuid.New()}
	s.plan = plan
	s.explanations = map[model.ExplainerType]model.Explanation{}
	s.prediction = nil
	s.evaluations = nil
	s.colors.Reset()
	key := s.key
	s.mu.Unlock()

	s.logger.Debug().Str("session", key.String()).Msg("query changed")
	// selection listeners re-derive when the selection actually changes
	s.selection.QueryChanged()
	s.rederive()
	return key
}

// Key returns the active key.
func (s *Session) Key() Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// ApplyExplanation replaces the scores of e.Explainer. An explanation tagged
// with another query is dropped like stale data.
func (s *Session) ApplyExplanation(key Key, e model.Explanation) error {
	return s.apply(key, e.QueryID, func() {
		s.explanations[e.Explainer] = e
	})
}

// ApplyPrediction sets the cost model prediction.
func (s *Session) ApplyPrediction(key Key, p model.Prediction) error {
	return s.apply(key, 0, func() {
		s.prediction = &p
	})
}

// ApplyEvaluations replaces the evaluation results.
func (s *Session) ApplyEvaluations(key Key, results []model.EvaluationResult) error {
	for _, r := range results {
		if r.QueryID != 0 && r.QueryID != key.QueryID {
			return s.apply(key, r.QueryID, nil)
		}
	}
	return s.apply(key, 0, func() {
		s.evaluations = append([]model.EvaluationResult(nil), results...)
	})
}

// Resize changes the bar width.
func (s *Session) Resize(width int) {
	s.mu.Lock()
	s.opts.Analyzer.Width = width
	s.mu.Unlock()
	s.rederive()
}

// Select marks nodeID as selected in every view.
func (s *Session) Select(nodeID int) {
	s.selection.Select(nodeID)
}

// Clear drops the selection.
func (s *Session) Clear() {
	s.selection.Clear()
}

// Selection returns the current selection.
func (s *Session) Selection() selection.State {
	return s.selection.State()
}

// Snapshot returns the latest analysis, or nil before the first query.
func (s *Session) Snapshot() *analyzer.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// apply runs fn under the lock when key is current. A non-zero queryID must
// match the query of key.
func (s *Session) apply(key Key, queryID int, fn func()) error {
	s.mu.Lock()
	if key == s.key && queryID != 0 && queryID != key.QueryID {
		s.mu.Unlock()
		s.logger.Warn().
			Str("session", key.String()).
			Int("query_id", queryID).
			Msg("dropping data for another query")
		return &model.StaleDataError{Want: fmt.Sprintf("query %d", key.QueryID), Got: fmt.Sprintf("query %d", queryID)}
	}
	if key != s.key {
		current := s.key
		s.mu.Unlock()
		s.logger.Warn().
			Str("session", current.String()).
			Str("received", key.String()).
			Msg("dropping stale data")
		return &model.StaleDataError{Want: current.String(), Got: key.String()}
	}
	fn()
	s.mu.Unlock()
	s.rederive()
	return nil
}

func (s *Session) rederive() {
	s.mu.Lock()
	if s.plan == nil {
		s.snapshot = nil
		s.mu.Unlock()
		return
	}

	in := analyzer.Input{
		Plan:        s.plan,
		Explainers:  s.opts.Explainers,
		Prediction:  s.prediction,
		Evaluations: s.evaluations,
	}
	for _, explainer := range s.opts.Explainers {
		if e, ok := s.explanations[explainer]; ok {
			in.Explanations = append(in.Explanations, e)
		}
	}
	opts := s.opts.Analyzer
	opts.Selected = s.selection.State()

	analysis, err := analyzer.Analyze(in, s.colors, opts)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error().Err(err).Msg("derive analysis")
		return
	}
	s.snapshot = analysis
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		if fn != nil {
			fn(analysis)
		}
	}
}
