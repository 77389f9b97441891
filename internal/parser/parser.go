package parser

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mickamy/planlens/internal/graphview"
	"github.com/mickamy/planlens/internal/model"
)

// ParsePlan reads a full plan document as served by the backend.
func ParsePlan(r io.Reader) (*model.Plan, error) {
	obj, err := decodeObject(r, "plan")
	if err != nil {
		return nil, err
	}

	plan := &model.Plan{
		ID:               asInt(obj["id"]),
		SQL:              asString(obj["sql"]),
		GraphDescription: asString(obj["dotGraph"]),
		Runtime:          asFloat(obj["planRuntime"]),
		Extra:            map[string]any{},
	}

	seen := map[int]struct{}{}
	for i, raw := range asSlice(obj["graphNodes"]) {
		nodeObj, err := asObject(raw)
		if err != nil {
			return nil, fmt.Errorf("plan json: graph node %d: %w", i, err)
		}
		node, err := parseNode(nodeObj)
		if err != nil {
			return nil, fmt.Errorf("plan json: graph node %d: %w", i, err)
		}
		if _, dup := seen[node.ID]; dup {
			return nil, fmt.Errorf("plan json: duplicate node id %d", node.ID)
		}
		seen[node.ID] = struct{}{}
		plan.Nodes = append(plan.Nodes, node)
	}
	sort.SliceStable(plan.Nodes, func(i, j int) bool { return plan.Nodes[i].ID < plan.Nodes[j].ID })

	if edges := asSlice(obj["edges"]); len(edges) > 0 {
		for i, raw := range edges {
			edgeObj, err := asObject(raw)
			if err != nil {
				return nil, fmt.Errorf("plan json: edge %d: %w", i, err)
			}
			plan.Edges = append(plan.Edges, model.Edge{From: asInt(edgeObj["from"]), To: asInt(edgeObj["to"])})
		}
	} else {
		plan.Edges = graphview.ParseEdges(plan.GraphDescription)
	}

	for k, v := range obj {
		switch k {
		case "id", "sql", "dotGraph", "planRuntime", "graphNodes", "edges":
			continue
		}
		plan.Extra[k] = v
	}
	return plan, nil
}

func parseNode(obj map[string]any) (model.PlanNode, error) {
	idVal, ok := obj["nodeId"]
	if !ok {
		return model.PlanNode{}, errors.New("missing nodeId")
	}
	node := model.PlanNode{
		ID:         asInt(idVal),
		Label:      asString(obj["label"]),
		Attributes: map[string]any{},
	}

	info, err := asObject(obj["nodeInfo"])
	if err != nil {
		// nodes without info still render with the default fill
		return node, nil
	}
	node.Type = model.NodeType(asString(info["nodeType"]))
	for k, v := range flattenInfo(info) {
		if k == "nodeType" {
			continue
		}
		node.Attributes[k] = v
	}
	return node, nil
}

// flattenInfo lifts planParameters and columnStats to the top level and drops empty values.
func flattenInfo(info map[string]any) map[string]any {
	out := make(map[string]any, len(info))
	for k, v := range info {
		if k == "planParameters" || k == "columnStats" {
			continue
		}
		out[k] = v
	}
	for _, nested := range []string{"planParameters", "columnStats"} {
		sub, err := asObject(info[nested])
		if err != nil {
			continue
		}
		for k, v := range sub {
			out[k] = v
		}
	}
	for k, v := range out {
		if isEmpty(v) {
			delete(out, k)
		}
	}
	return out
}

func isEmpty(v any) bool {
	switch typed := v.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case []any:
		return len(typed) == 0
	default:
		return false
	}
}

// ParseExplanation reads one explainer's scores. Both the current
// scaledImportance list and the legacy nodeImportance list or object are accepted.
func ParseExplanation(r io.Reader) (*model.Explanation, error) {
	obj, err := decodeObject(r, "explanation")
	if err != nil {
		return nil, err
	}

	explainer, err := parseExplainer(obj["explainerType"])
	if err != nil {
		return nil, fmt.Errorf("explanation json: %w", err)
	}
	explanation := &model.Explanation{
		QueryID:       asInt(obj["queryId"]),
		Explainer:     explainer,
		ExecutionTime: asFloat(obj["executionTime"]),
	}

	var scores model.ScoreMap
	switch {
	case obj["scaledImportance"] != nil:
		scores, err = parseScoreList(obj["scaledImportance"], "score")
	case obj["nodeImportance"] != nil:
		if m, ok := obj["nodeImportance"].(map[string]any); ok {
			scores, err = parseScoreObject(m)
		} else {
			scores, err = parseScoreList(obj["nodeImportance"], "importance")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("explanation json: %w", err)
	}
	explanation.ScaledImportance = scores
	return explanation, nil
}

func parseScoreList(val any, scoreKey string) (model.ScoreMap, error) {
	items := asSlice(val)
	out := make(model.ScoreMap, 0, len(items))
	seen := map[int]struct{}{}
	for i, raw := range items {
		item, err := asObject(raw)
		if err != nil {
			return nil, fmt.Errorf("score %d: %w", i, err)
		}
		id, err := nodeID(item["nodeId"])
		if err != nil {
			return nil, fmt.Errorf("score %d: %w", i, err)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate score for node %d", id)
		}
		seen[id] = struct{}{}
		s, ok := item[scoreKey]
		if !ok {
			s = item["score"]
		}
		out = append(out, model.ScoreEntry{NodeID: id, Score: asFloat(s)})
	}
	return out, nil
}

func parseScoreObject(m map[string]any) (model.ScoreMap, error) {
	out := make(model.ScoreMap, 0, len(m))
	for k, v := range m {
		id, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("invalid node id %q: %w", k, err)
		}
		out = append(out, model.ScoreEntry{NodeID: id, Score: asFloat(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

// ParsePrediction reads a cost model prediction.
func ParsePrediction(r io.Reader) (*model.Prediction, error) {
	obj, err := decodeObject(r, "prediction")
	if err != nil {
		return nil, err
	}
	return &model.Prediction{
		Label:         asFloat(obj["label"]),
		Prediction:    asFloat(obj["prediction"]),
		QError:        asFloat(obj["qerror"]),
		ExecutionTime: asFloat(obj["executionTime"]),
	}, nil
}

// ParseEvaluations reads a list of evaluation results, or a single result.
func ParseEvaluations(r io.Reader) ([]model.EvaluationResult, error) {
	payload, err := decode(r, "evaluation")
	if err != nil {
		return nil, err
	}

	var items []any
	switch v := payload.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return nil, fmt.Errorf("evaluation json: unexpected top-level type %T", payload)
	}

	out := make([]model.EvaluationResult, 0, len(items))
	for i, raw := range items {
		item, err := asObject(raw)
		if err != nil {
			return nil, fmt.Errorf("evaluation json: entry %d: %w", i, err)
		}
		explainer, err := parseExplainer(item["explainerType"])
		if err != nil {
			return nil, fmt.Errorf("evaluation json: entry %d: %w", i, err)
		}
		out = append(out, model.EvaluationResult{
			QueryID:        asInt(item["queryId"]),
			Explainer:      explainer,
			Metric:         model.MetricType(asString(item["metricType"])),
			Score:          asFloat(item["score"]),
			RelativeChange: asFloat(item["relativeChange"]),
			OutputsEqual:   asBool(item["outputsEqual"]),
		})
	}
	return out, nil
}

// parseExplainer resolves explainerType to its canonical name. A missing
// value stays empty so stores can fill it from their key.
func parseExplainer(val any) (model.ExplainerType, error) {
	name := strings.TrimSpace(asString(val))
	if name == "" {
		return "", nil
	}
	return model.ParseExplainer(name)
}

// nodeID reads a score entry's node id, which must be present and integral.
func nodeID(val any) (int, error) {
	var f float64
	switch v := val.(type) {
	case nil:
		return 0, errors.New("missing nodeId")
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), nil
		}
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid nodeId %q", v.String())
		}
		f = parsed
	case float64:
		f = v
	default:
		return 0, fmt.Errorf("invalid nodeId %v (%T)", v, v)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid nodeId %v", f)
	}
	return int(f), nil
}

func decode(r io.Reader, what string) (any, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s json: %w", what, err)
	}
	return payload, nil
}

func decodeObject(r io.Reader, what string) (map[string]any, error) {
	payload, err := decode(r, what)
	if err != nil {
		return nil, err
	}
	obj, err := asObject(payload)
	if err != nil {
		return nil, fmt.Errorf("%s json: %w", what, err)
	}
	return obj, nil
}

func asObject(val any) (map[string]any, error) {
	if val == nil {
		return nil, errors.New("nil object")
	}
	obj, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", val)
	}
	return obj, nil
}

func asSlice(val any) []any {
	if v, ok := val.([]any); ok {
		return v
	}
	return nil
}

func asString(val any) string {
	if val == nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func asBool(val any) bool {
	switch v := val.(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

func asFloat(val any) float64 {
	if val == nil {
		return 0
	}
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		if v == "" {
			return 0
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asInt(val any) int {
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(math.Round(v))
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return int(math.Round(f))
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}
