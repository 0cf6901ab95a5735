package graph

import (
	"bytes"
)

// NodeConstrain is implemented by anything drawn as a node, the ID of its spec is its key in the graph.
type NodeConstrain interface {
	DotSpec() *DotNodeSpec
}

// EdgeSpecFunc renders the connection between two nodes, it is called when the graph is rendered.
type EdgeSpecFunc[NT NodeConstrain] func(from, to NT) *DotEdgeSpec

type DotNodeSpec struct {
	ID        string
	Name      string
	Tooltip   string
	Shape     string
	Style     string
	FillColor string
}

type DotEdgeSpec struct {
	FromNodeID string
	ToNodeID   string
	Tooltip    string
	Style      string
	Color      string
}

type edge struct {
	from string
	to   string
}

// Graph is a directed graph of nodes, rendered in DOT.
type Graph[NT NodeConstrain] struct {
	nodes        map[string]NT
	nodeOrder    []string
	edges        []edge
	edgeSpecFunc EdgeSpecFunc[NT]
}

func NewGraph[NT NodeConstrain](edgeSpecFunc EdgeSpecFunc[NT]) *Graph[NT] {
	return &Graph[NT]{
		nodes:        make(map[string]NT),
		edgeSpecFunc: edgeSpecFunc,
	}
}

func (g *Graph[NT]) AddNode(n NT) error {
	nodeKey := n.DotSpec().ID
	if _, ok := g.nodes[nodeKey]; ok {
		return &NodeError{Code: ErrDuplicateNode, NodeID: nodeKey}
	}
	g.nodes[nodeKey] = n
	g.nodeOrder = append(g.nodeOrder, nodeKey)

	return nil
}

func (g *Graph[NT]) Connect(from, to string) error {
	if _, ok := g.nodes[from]; !ok {
		return &NodeError{Code: ErrConnectNotExistingNode, NodeID: from}
	}
	if _, ok := g.nodes[to]; !ok {
		return &NodeError{Code: ErrConnectNotExistingNode, NodeID: to}
	}

	g.edges = append(g.edges, edge{from: from, to: to})
	return nil
}

func (g *Graph[NT]) Len() int {
	return len(g.nodes)
}

// https://en.wikipedia.org/wiki/DOT_(graph_description_language)
func (g *Graph[NT]) ToDotGraph() (string, error) {
	nodes := make([]*DotNodeSpec, 0, len(g.nodeOrder))
	for _, key := range g.nodeOrder {
		nodes = append(nodes, g.nodes[key].DotSpec())
	}

	edges := make([]*DotEdgeSpec, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, g.edgeSpecFunc(g.nodes[e.from], g.nodes[e.to]))
	}

	buf := new(bytes.Buffer)
	err := digraphTemplate.Execute(buf, templateRef{Nodes: nodes, Edges: edges})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

type templateRef struct {
	Nodes []*DotNodeSpec
	Edges []*DotEdgeSpec
}
