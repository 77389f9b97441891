package graphview

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	dotparse "gonum.org/v1/gonum/graph/formats/dot"
	"gonum.org/v1/gonum/graph/formats/dot/ast"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/mickamy/planlens/internal/heat"
	"github.com/mickamy/planlens/internal/model"
)

// planNode is a gonum node carrying DOT attributes.
type planNode struct {
	id    int64
	attrs []encoding.Attribute
}

func (n planNode) ID() int64                        { return n.id }
func (n planNode) DOTID() string                    { return strconv.FormatInt(n.id, 10) }
func (n planNode) Attributes() []encoding.Attribute { return n.attrs }

// Build converts the plan into a directed gonum graph. Edges with unknown
// endpoints and self loops are dropped.
func Build(plan *model.Plan) *simple.DirectedGraph {
	return build(plan, nil)
}

func build(plan *model.Plan, styles map[int]NodeStyle) *simple.DirectedGraph {
	g := simple.NewDirectedGraph()
	if plan == nil {
		return g
	}
	for _, node := range plan.Nodes {
		if g.Node(int64(node.ID)) != nil {
			continue
		}
		var attrs []encoding.Attribute
		if styles != nil {
			style, ok := styles[node.ID]
			if !ok {
				style = NodeStyle{NodeID: node.ID, Fill: heat.Categorical(node.Type)}
			}
			attrs = dotAttributes(node, style)
		}
		g.AddNode(planNode{id: int64(node.ID), attrs: attrs})
	}
	for _, edge := range plan.Edges {
		if edge.From == edge.To {
			continue
		}
		from, to := g.Node(int64(edge.From)), g.Node(int64(edge.To))
		if from == nil || to == nil {
			continue
		}
		g.SetEdge(g.NewEdge(from, to))
	}
	return g
}

// TopoOrder returns node ids with every edge source before its target.
func TopoOrder(plan *model.Plan) ([]int, error) {
	sorted, err := topo.Sort(Build(plan))
	if err != nil {
		return nil, fmt.Errorf("graphview: plan graph is not acyclic: %w", err)
	}
	out := make([]int, 0, len(sorted))
	for _, n := range sorted {
		out = append(out, int(n.ID()))
	}
	return out, nil
}

// Roots lists nodes without incoming edges in plan order.
func Roots(plan *model.Plan) []int {
	g := Build(plan)
	var out []int
	if plan == nil {
		return out
	}
	for _, node := range plan.Nodes {
		if g.To(int64(node.ID)).Len() == 0 {
			out = append(out, node.ID)
		}
	}
	return out
}

// DOT renders the plan with fills from styles. Selected nodes get a thick outline.
func DOT(plan *model.Plan, styles []NodeStyle) (string, error) {
	byID := make(map[int]NodeStyle, len(styles))
	for _, s := range styles {
		byID[s.NodeID] = s
	}
	name := "plan"
	if plan != nil {
		name = fmt.Sprintf("plan_%d", plan.ID)
	}
	b, err := dot.Marshal(build(plan, byID), name, "", "  ")
	if err != nil {
		return "", fmt.Errorf("graphview: marshal dot: %w", err)
	}
	return string(b), nil
}

func dotAttributes(node model.PlanNode, style NodeStyle) []encoding.Attribute {
	attrs := []encoding.Attribute{
		{Key: "label", Value: strconv.Quote(node.Label)},
		{Key: "style", Value: `"filled"`},
		{Key: "fillcolor", Value: strconv.Quote(style.Fill.Hex())},
	}
	if style.Selected {
		attrs = append(attrs, encoding.Attribute{Key: "penwidth", Value: "3"})
	}
	return attrs
}

var edgePattern = regexp.MustCompile(`"?(\d+)"?\s*->\s*"?(\d+)"?`)

// ParseEdges extracts numeric edges from a DOT description. Chains such as
// a -> b -> c and groups such as a -> {b c} yield one edge per pair.
// Descriptions that do not parse as DOT fall back to scanning for a -> b.
func ParseEdges(description string) []model.Edge {
	if strings.TrimSpace(description) == "" {
		return nil
	}
	var c edgeCollector
	file, err := dotparse.ParseString(description)
	if err != nil {
		for _, m := range edgePattern.FindAllStringSubmatch(description, -1) {
			from, _ := strconv.Atoi(m[1])
			to, _ := strconv.Atoi(m[2])
			c.add(from, to)
		}
		return c.edges
	}
	for _, g := range file.Graphs {
		c.stmts(g.Stmts)
	}
	return c.edges
}

type edgeCollector struct {
	edges []model.Edge
	seen  map[model.Edge]struct{}
}

func (c *edgeCollector) add(from, to int) {
	if c.seen == nil {
		c.seen = make(map[model.Edge]struct{})
	}
	e := model.Edge{From: from, To: to}
	if _, dup := c.seen[e]; dup {
		return
	}
	c.seen[e] = struct{}{}
	c.edges = append(c.edges, e)
}

func (c *edgeCollector) stmts(stmts []ast.Stmt) {
	for _, stmt := range stmts {
		switch stmt := stmt.(type) {
		case *ast.EdgeStmt:
			from := c.vertex(stmt.From)
			for e := stmt.To; e != nil; e = e.To {
				to := c.vertex(e.Vertex)
				for _, a := range from {
					for _, b := range to {
						c.add(a, b)
					}
				}
				from = to
			}
		case *ast.Subgraph:
			c.stmts(stmt.Stmts)
		}
	}
}

// vertex returns the numeric ids named by v. Edges inside a subgraph operand
// are collected as well.
func (c *edgeCollector) vertex(v ast.Vertex) []int {
	switch v := v.(type) {
	case *ast.Node:
		if id, ok := numericID(v.ID); ok {
			return []int{id}
		}
	case *ast.Subgraph:
		var ids []int
		for _, stmt := range v.Stmts {
			switch stmt := stmt.(type) {
			case *ast.NodeStmt:
				if id, ok := numericID(stmt.Node.ID); ok {
					ids = append(ids, id)
				}
			case *ast.EdgeStmt:
				ids = append(ids, c.vertex(stmt.From)...)
				for e := stmt.To; e != nil; e = e.To {
					ids = append(ids, c.vertex(e.Vertex)...)
				}
			}
		}
		c.stmts(v.Stmts)
		return ids
	}
	return nil
}

func numericID(id string) (int, bool) {
	n, err := strconv.Atoi(strings.Trim(id, `"`))
	return n, err == nil
}

var _ graph.Node = planNode{}
