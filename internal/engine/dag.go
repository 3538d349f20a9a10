package engine

import "sort"

// DAG is the analyzed topology of a Workflow snapshot.
type DAG struct {
	nodes map[string]*Node

	// out groups outgoing connections from a node by sourceOutput.
	out map[string]map[string][]Connection
	// in groups incoming connections to a node by targetInput.
	in map[string]map[string][]Connection
	// pred is the set of node IDs a node waits on.
	pred map[string][]string
	// succ is the set of node IDs that wait on a node.
	succ map[string][]string

	entryNodes []string
}

// BuildDAG constructs the topology for a workflow snapshot and the selected
// trigger (manual submissions activate every trigger node; a webhook/
// schedule/polling submission activates only the matching trigger type).
// Disabled nodes are identity pass-throughs: their incoming connections are
// rewired directly to their outgoing connections, port names preserved.
func BuildDAG(wf *Workflow, triggerType string) *DAG {
	d := &DAG{
		nodes: make(map[string]*Node),
		out:   make(map[string]map[string][]Connection),
		in:    make(map[string]map[string][]Connection),
		pred:  make(map[string][]string),
		succ:  make(map[string][]string),
	}

	byID := make(map[string]*Node, len(wf.Nodes))
	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		byID[n.ID] = n
		if !n.Disabled {
			d.nodes[n.ID] = n
		}
	}

	conns := d.expandDisabled(wf.Connections, byID)

	for _, c := range conns {
		if d.out[c.SourceNodeID] == nil {
			d.out[c.SourceNodeID] = make(map[string][]Connection)
		}
		d.out[c.SourceNodeID][c.SourceOutput] = append(d.out[c.SourceNodeID][c.SourceOutput], c)

		if d.in[c.TargetNodeID] == nil {
			d.in[c.TargetNodeID] = make(map[string][]Connection)
		}
		d.in[c.TargetNodeID][c.TargetInput] = append(d.in[c.TargetNodeID][c.TargetInput], c)
	}

	predSet := make(map[string]map[string]bool)
	for _, c := range conns {
		if _, ok := d.nodes[c.TargetNodeID]; !ok {
			continue
		}
		if _, ok := d.nodes[c.SourceNodeID]; !ok {
			continue
		}
		if predSet[c.TargetNodeID] == nil {
			predSet[c.TargetNodeID] = make(map[string]bool)
		}
		predSet[c.TargetNodeID][c.SourceNodeID] = true
	}
	for id, set := range predSet {
		for p := range set {
			d.pred[id] = append(d.pred[id], p)
			d.succ[p] = append(d.succ[p], id)
		}
		sort.Strings(d.pred[id])
	}
	for id := range d.succ {
		sort.Strings(d.succ[id])
	}

	d.entryNodes = computeEntryNodes(d.nodes, d.pred, triggerType)
	sort.Strings(d.entryNodes)
	return d
}

// expandDisabled rewrites connections through disabled nodes so that a
// disabled node's predecessors connect directly to its successors,
// preserving the disabled node's input/output port names at the splice
// point.
func (d *DAG) expandDisabled(conns []Connection, byID map[string]*Node) []Connection {
	resolved := make([]Connection, 0, len(conns))
	var resolve func(c Connection, depth int) []Connection
	resolve = func(c Connection, depth int) []Connection {
		if depth > len(byID)+1 {
			return nil // cyclic disabled chain; acyclicity check reports it
		}
		target := byID[c.TargetNodeID]
		if target == nil || !target.Disabled {
			return []Connection{c}
		}
		var out []Connection
		for _, nc := range conns {
			if nc.SourceNodeID != target.ID || nc.TargetInput != "" && nc.SourceOutput != c.TargetInput {
				continue
			}
			spliced := Connection{
				ID:           c.ID + ">" + nc.ID,
				SourceNodeID: c.SourceNodeID,
				SourceOutput: c.SourceOutput,
				TargetNodeID: nc.TargetNodeID,
				TargetInput:  nc.TargetInput,
			}
			out = append(out, resolve(spliced, depth+1)...)
		}
		return out
	}
	for _, c := range conns {
		if src := byID[c.SourceNodeID]; src != nil && src.Disabled {
			continue // will be reached via the splice from its own predecessors
		}
		resolved = append(resolved, resolve(c, 0)...)
	}
	return resolved
}

func computeEntryNodes(nodes map[string]*Node, pred map[string][]string, triggerType string) []string {
	var triggers []string
	for id, n := range nodes {
		if len(pred[id]) > 0 {
			continue
		}
		if isTriggerNode(n) {
			triggers = append(triggers, id)
		}
	}
	if len(triggers) == 0 {
		return nil
	}
	if triggerType == "" || triggerType == "manual" {
		return triggers
	}
	var matched []string
	for _, id := range triggers {
		if nodeTriggerMatches(nodes[id], triggerType) {
			matched = append(matched, id)
		}
	}
	return matched
}

// isTriggerNode/nodeTriggerMatches are overridden via SetTriggerClassifier
// since the DAG package has no dependency on the node registry; cmd/worker
// wires the real classifier at startup.
var (
	isTriggerNode     = func(n *Node) bool { return true }
	nodeTriggerMatches = func(n *Node, triggerType string) bool { return true }
)

// SetTriggerClassifier lets the engine wire real node-type trigger
// classification without the dag.go file depending on the node registry
// package, avoiding an import cycle between engine and engine/core's
// consumers.
func SetTriggerClassifier(isTrigger func(n *Node) bool, matches func(n *Node, triggerType string) bool) {
	isTriggerNode = isTrigger
	nodeTriggerMatches = matches
}

// EntryNodes returns the resolved set of entry nodes for this submission.
func (d *DAG) EntryNodes() []string { return append([]string(nil), d.entryNodes...) }

// Predecessors returns the sorted predecessor node IDs of n.
func (d *DAG) Predecessors(n string) []string { return append([]string(nil), d.pred[n]...) }

// Successors returns the sorted successor node IDs of n.
func (d *DAG) Successors(n string) []string { return append([]string(nil), d.succ[n]...) }

// OutgoingByPort returns the outgoing connections of n grouped by source
// output port.
func (d *DAG) OutgoingByPort(n string) map[string][]Connection { return d.out[n] }

// IncomingByPort returns the incoming connections of n grouped by target
// input port.
func (d *DAG) IncomingByPort(n string) map[string][]Connection { return d.in[n] }

// Nodes returns all enabled nodes in the snapshot, keyed by ID.
func (d *DAG) Nodes() map[string]*Node { return d.nodes }

// Validate checks acyclicity of the enabled-node subgraph via Kahn's
// algorithm; a result shorter than the node count
// indicates at least one cycle.
func (d *DAG) Validate() (sorted []string, cyclic []string, ok bool) {
	remaining := make(map[string]int, len(d.nodes))
	for id := range d.nodes {
		remaining[id] = len(d.pred[id])
	}
	var queue []string
	for id, r := range remaining {
		if r == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		sort.Strings(queue)
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)
		for _, s := range d.succ[id] {
			remaining[s]--
			if remaining[s] == 0 {
				queue = append(queue, s)
			}
		}
	}

	if len(sorted) != len(d.nodes) {
		seen := make(map[string]bool, len(sorted))
		for _, id := range sorted {
			seen[id] = true
		}
		for id := range d.nodes {
			if !seen[id] {
				cyclic = append(cyclic, id)
			}
		}
		sort.Strings(cyclic)
		return sorted, cyclic, false
	}
	return sorted, nil, true
}

// Reachable computes the set of node IDs reachable from the entry nodes via
// the successor graph, used to classify SKIPPED vs never-reachable nodes.
func (d *DAG) Reachable() map[string]bool {
	seen := make(map[string]bool)
	queue := append([]string(nil), d.entryNodes...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		queue = append(queue, d.succ[id]...)
	}
	return seen
}
