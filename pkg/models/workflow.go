package models

// NodeType identifies what a workflow node does when executed.
type NodeType string

const (
	NodeTypeStart       NodeType = "start"
	NodeTypeEnd         NodeType = "end"
	NodeTypeServiceTask NodeType = "service_task"
	NodeTypeUserTask    NodeType = "user_task"
	NodeTypeDecision    NodeType = "decision"
	NodeTypeParallel    NodeType = "parallel"
	NodeTypeTimer       NodeType = "timer"
)

// DefaultEdgeLabel marks the fallback edge of a discriminant decision.
const DefaultEdgeLabel = "default"

// Edge is an outgoing connection to a successor node.
type Edge struct {
	Target string `json:"target"          validate:"required"`
	Label  string `json:"label,omitempty"`
}

// To builds unlabelled edges in order.
func To(targets ...string) []Edge {
	edges := make([]Edge, len(targets))
	for i, t := range targets {
		edges[i] = Edge{Target: t}
	}

	return edges
}

// WorkflowNode is a typed unit of work in a workflow graph.
type WorkflowNode struct {
	ID          string         `json:"id"                    validate:"required"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Type        NodeType       `json:"type"                  validate:"required,oneof=start end service_task user_task decision parallel timer"`
	Outgoing    []Edge         `json:"outgoing,omitempty"    validate:"dive"`
	Properties  map[string]any `json:"properties,omitempty"`

	// service_task
	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`

	// user_task
	Assignee       string         `json:"assignee,omitempty"`
	CandidateUsers []string       `json:"candidate_users,omitempty"`
	DueInDays      *int           `json:"due_in_days,omitempty"`
	ResultSchema   map[string]any `json:"result_schema,omitempty"`

	// decision: either a boolean Condition (edge 0 true, edge 1 false) or a
	// Discriminant field path matched against edge labels.
	Condition    *Condition `json:"condition,omitempty"`
	Discriminant string     `json:"discriminant,omitempty"`

	// timer: Go duration ("36h") or 5-field cron expression.
	Delay string `json:"delay,omitempty"`
}

// Targets returns the successor node ids in edge order.
func (n *WorkflowNode) Targets() []string {
	targets := make([]string, len(n.Outgoing))
	for i, e := range n.Outgoing {
		targets[i] = e.Target
	}

	return targets
}

// WorkflowDefinition is a versioned, tenant-owned process graph.
type WorkflowDefinition struct {
	ID          string                   `json:"id"          validate:"required"`
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	Version     string                   `json:"version"     validate:"required"`
	TenantID    string                   `json:"tenant_id"   validate:"required"`
	StartNode   string                   `json:"start_node"  validate:"required"`
	Nodes       map[string]*WorkflowNode `json:"nodes"       validate:"required,min=1,dive"`
}

// Node returns the node with the given id.
func (d *WorkflowDefinition) Node(id string) (*WorkflowNode, bool) {
	n, ok := d.Nodes[id]

	return n, ok
}

// Clone returns a deep copy of the definition.
func (d *WorkflowDefinition) Clone() *WorkflowDefinition {
	c := *d
	c.Nodes = make(map[string]*WorkflowNode, len(d.Nodes))

	for id, n := range d.Nodes {
		if n == nil {
			c.Nodes[id] = nil

			continue
		}

		nc := *n
		nc.Outgoing = append([]Edge(nil), n.Outgoing...)
		nc.Properties = CopyMap(n.Properties)
		nc.CandidateUsers = append([]string(nil), n.CandidateUsers...)
		nc.ResultSchema = CopyMap(n.ResultSchema)

		if n.DueInDays != nil {
			days := *n.DueInDays
			nc.DueInDays = &days
		}

		if n.Condition != nil {
			cond := n.Condition.clone()
			nc.Condition = &cond
		}

		c.Nodes[id] = &nc
	}

	return &c
}
