package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/planlens/internal/analyzer"
	"github.com/mickamy/planlens/internal/config"
	"github.com/mickamy/planlens/internal/diff"
	"github.com/mickamy/planlens/internal/graphview"
	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/ranking"
	"github.com/mickamy/planlens/internal/store/sqlite"
	"github.com/mickamy/planlens/test"
)

func sampleSource(t *testing.T) source {
	t.Helper()
	src := source{
		Plan:        test.SamplePath(t, "plan.json"),
		Prediction:  test.SamplePath(t, "prediction.json"),
		Evaluations: test.SamplePath(t, "evaluations.json"),
	}
	for _, name := range test.SampleExplanations {
		src.Explanations = append(src.Explanations, test.SamplePath(t, name))
	}
	return src
}

func testLogger(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t))
}

func TestSetupLoggingLevels(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, setupLogging("debug").GetLevel())
	assert.Equal(t, zerolog.WarnLevel, setupLogging("WARN").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, setupLogging("bogus").GetLevel())
}

func TestAnalyzerOptionsFromConfig(t *testing.T) {
	cfg := config.Default()

	opts, err := analyzerOptions(cfg, view{Select: -1})
	require.NoError(t, err)
	assert.Equal(t, cfg.Bar.Width, opts.Width)
	assert.Equal(t, ranking.Top(cfg.Ranking.Limit), opts.Limit)
	assert.Equal(t, graphview.ModeNodeImportance, opts.GraphMode)
	assert.Empty(t, opts.GraphExplainer)

	opts, err = analyzerOptions(cfg, view{Width: 300, All: true, GraphMode: "nodetypes", GraphExplainer: "gradient"})
	require.NoError(t, err)
	assert.Equal(t, 300, opts.Width)
	assert.True(t, opts.Limit.IsAll())
	assert.Equal(t, graphview.ModeNodeTypes, opts.GraphMode)
	assert.Equal(t, model.ExplainerGradient, opts.GraphExplainer)

	_, err = analyzerOptions(cfg, view{GraphMode: "sideways"})
	require.Error(t, err)
	_, err = analyzerOptions(cfg, view{GraphExplainer: "oracle"})
	require.Error(t, err)
}

func TestLoadBundleFromFiles(t *testing.T) {
	bundle, err := loadBundle(context.Background(), sampleSource(t), testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 42, bundle.QueryID)
	assert.Len(t, bundle.Explanations, len(test.SampleExplanations))
	require.NotNil(t, bundle.Prediction)
	assert.Len(t, bundle.Evaluations, 4)
	for _, explanation := range bundle.Explanations {
		assert.Equal(t, 42, explanation.QueryID)
	}
}

func TestLoadBundleRejectsExplanationForAnotherQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "explanation_other.json")
	doc := `{"queryId": 41, "explainerType": "GradientExplainer", "scaledImportance": [{"nodeId": 1, "score": 0.9}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	src := sampleSource(t)
	src.Explanations = append(src.Explanations, path)
	_, err := loadBundle(context.Background(), src, testLogger(t))
	require.ErrorContains(t, err, "query 41")
}

func TestLoadBundleNeedsSource(t *testing.T) {
	_, err := loadBundle(context.Background(), source{}, testLogger(t))
	require.Error(t, err)

	_, err = loadBundle(context.Background(), source{DB: filepath.Join(t.TempDir(), "cache.db")}, testLogger(t))
	require.ErrorContains(t, err, "--query")
}

func TestDeriveAnalysisShowsEveryExplainer(t *testing.T) {
	bundle, err := loadBundle(context.Background(), sampleSource(t), testLogger(t))
	require.NoError(t, err)

	analysis, err := deriveAnalysis(config.Default(), view{Select: 1}, bundle, testLogger(t))
	require.NoError(t, err)
	assert.Len(t, analysis.Explainers, len(model.ExplainerTypes))
	assert.True(t, analysis.Selected.Selected)
	assert.Equal(t, 1, analysis.Selected.NodeID)

	gnn, ok := analysis.View(model.ExplainerGNN)
	require.True(t, ok)
	assert.True(t, gnn.Pending)
}

func TestWriteReportDocuments(t *testing.T) {
	analysis := test.LoadSampleDashboard(t)

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, "json", analysis, reportOptions{}))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.EqualValues(t, 42, decoded["query_id"])
	explainers, ok := decoded["explainers"].([]any)
	require.True(t, ok)
	assert.Len(t, explainers, len(analysis.Explainers))

	buf.Reset()
	require.NoError(t, writeReport(&buf, "yaml", analysis, reportOptions{}))
	assert.Contains(t, buf.String(), "query_id: 42")

	buf.Reset()
	require.NoError(t, writeReport(&buf, "html", analysis, reportOptions{Title: "sample"}))
	assert.Contains(t, buf.String(), "<title>sample</title>")

	require.Error(t, writeReport(&buf, "pdf", analysis, reportOptions{}))
}

func TestInferFormat(t *testing.T) {
	for path, want := range map[string]string{
		"out/report.HTML": "html",
		"bars.svg":        "svg",
		"bars.png":        "png",
		"analysis.yml":    "yaml",
		"analysis.json":   "json",
	} {
		got, ok := inferFormat(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}
	_, ok := inferFormat("report")
	assert.False(t, ok)
}

func TestImportThenReportFromCache(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	cache, err := sqlite.Open(ctx, path, sqlite.Options{Logger: testLogger(t)})
	require.NoError(t, err)
	queryID, err := importFiles(ctx, cache, sampleSource(t))
	require.NoError(t, err)
	require.NoError(t, cache.Close())
	assert.Equal(t, 42, queryID)

	bundle, err := loadBundle(ctx, source{DB: path, Query: queryID}, testLogger(t))
	require.NoError(t, err)
	assert.Len(t, bundle.Explanations, len(test.SampleExplanations))
	assert.Len(t, bundle.Evaluations, 4)
}

func TestFetchCopiesBundles(t *testing.T) {
	ctx := context.Background()
	from, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "from.db"), sqlite.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = from.Close() })
	_, err = importFiles(ctx, from, sampleSource(t))
	require.NoError(t, err)

	to, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "to.db"), sqlite.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = to.Close() })
	require.NoError(t, fetchQueries(ctx, from, to, []int{42}, testLogger(t)))

	queries, err := to.Queries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{42}, queries)
}

func TestParseQueryIDs(t *testing.T) {
	ids, err := parseQueryIDs([]string{"42", "7"})
	require.NoError(t, err)
	assert.Equal(t, []int{42, 7}, ids)

	_, err = parseQueryIDs([]string{"x"})
	require.Error(t, err)
	_, err = parseQueryIDs([]string{"-1"})
	require.Error(t, err)
}

func TestCompareExplainers(t *testing.T) {
	analysis := test.LoadSampleAnalysis(t)

	report, err := compareExplainers(analysis, "actual", "gradient", diff.Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeDiff(&buf, "md", report))
	assert.NotEmpty(t, buf.String())
	require.Error(t, writeDiff(&buf, "csv", report))

	_, err = compareExplainers(analysis, "actual", "oracle", diff.Options{})
	require.Error(t, err)
}

func TestFollowerFillsPendingExplainer(t *testing.T) {
	dir := t.TempDir()
	copySample := func(name string) string {
		raw, err := os.ReadFile(test.SamplePath(t, name))
		require.NoError(t, err)
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, raw, 0o644))
		return path
	}

	src := source{
		Plan:         copySample("plan.json"),
		Explanations: []string{copySample("explanation_actual.json")},
	}
	sess, err := newSession(config.Default(), view{Select: -1}, testLogger(t))
	require.NoError(t, err)

	renders := 0
	f := &follower{
		sess:   sess,
		src:    src,
		logger: testLogger(t),
		render: func(*analyzer.Analysis) error {
			renders++
			return nil
		},
	}
	f.sess.OnChange(func(a *analyzer.Analysis) { _ = f.render(a) })
	require.NoError(t, f.reload())

	gradient, ok := sess.Snapshot().View(model.ExplainerGradient)
	require.True(t, ok)
	require.True(t, gradient.Pending)

	f.src.Explanations = append(f.src.Explanations, copySample("explanation_gradient.json"))
	before := renders
	f.changed(filepath.Join(dir, "unrelated.json"))
	assert.Equal(t, before, renders)

	f.changed(filepath.Join(dir, "explanation_gradient.json"))
	assert.Greater(t, renders, before)
	gradient, ok = sess.Snapshot().View(model.ExplainerGradient)
	require.True(t, ok)
	assert.False(t, gradient.Pending)
}
