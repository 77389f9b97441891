package model

// NodeType tags the role a node plays in the plan graph.
type NodeType string

const (
	NodeTypeTable            NodeType = "table"
	NodeTypeColumn           NodeType = "column"
	NodeTypeFilterColumn     NodeType = "filter_column"
	NodeTypeOutputColumn     NodeType = "output_column"
	NodeTypePlan             NodeType = "plan"
	NodeTypeLogicalPredicate NodeType = "logical_pred_"
)

// NodeTypes lists every known node type in legend order.
var NodeTypes = []NodeType{
	NodeTypePlan,
	NodeTypeColumn,
	NodeTypeFilterColumn,
	NodeTypeLogicalPredicate,
	NodeTypeOutputColumn,
	NodeTypeTable,
}

// Display returns the short human label used in tables.
func (t NodeType) Display() string {
	switch t {
	case NodeTypeTable:
		return "Table"
	case NodeTypeColumn:
		return "Column"
	case NodeTypeFilterColumn:
		return "Filter"
	case NodeTypeOutputColumn:
		return "Output"
	case NodeTypePlan:
		return "Plan"
	case NodeTypeLogicalPredicate:
		return "Predicate"
	default:
		return "Unknown"
	}
}

// Known reports whether t is one of the declared node types.
func (t NodeType) Known() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// PlanNode captures one node of the plan graph. It is immutable for the plan's lifetime.
type PlanNode struct {
	ID         int
	Label      string
	Type       NodeType
	Attributes map[string]any
}

// Edge connects two plan nodes by id.
type Edge struct {
	From int
	To   int
}

// Plan is the graph for one query as delivered by the inference backend.
type Plan struct {
	ID               int
	SQL              string
	GraphDescription string
	// Runtime is the measured plan runtime, used to attribute cost to nodes.
	Runtime float64
	Nodes   []PlanNode
	Edges   []Edge
	// Extra carries top-level fields that we do not interpret.
	Extra map[string]any
}

// Node looks a node up by id.
func (p *Plan) Node(id int) (PlanNode, bool) {
	if p == nil {
		return PlanNode{}, false
	}
	// nodes are usually stored at their own index
	if id >= 0 && id < len(p.Nodes) && p.Nodes[id].ID == id {
		return p.Nodes[id], true
	}
	for _, node := range p.Nodes {
		if node.ID == id {
			return node, true
		}
	}
	return PlanNode{}, false
}

// NodeIndex returns a map from node id to node.
func (p *Plan) NodeIndex() map[int]PlanNode {
	if p == nil {
		return nil
	}
	out := make(map[int]PlanNode, len(p.Nodes))
	for _, node := range p.Nodes {
		out[node.ID] = node
	}
	return out
}
