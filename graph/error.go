package graph

type NodeErrorCode string

const (
	ErrDuplicateNode          NodeErrorCode = "node with same key already exists in this graph"
	ErrConnectNotExistingNode NodeErrorCode = "node to connect does not exist in this graph"
)

func (code NodeErrorCode) Error() string {
	return string(code)
}

// NodeError reports an operation rejected because of the node with key NodeID.
type NodeError struct {
	Code   NodeErrorCode
	NodeID string
}

func (ne *NodeError) Error() string {
	return ne.Code.Error() + ": node " + ne.NodeID
}

func (ne *NodeError) Unwrap() error {
	return ne.Code
}
