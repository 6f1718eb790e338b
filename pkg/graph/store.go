package graph

import "strings"

// NodeType discriminates node flavors. The chat core only ever creates
// concepts and predicates, mirroring an atomspace-style store.
type NodeType string

const (
	NodeTypeConcept   NodeType = "concept"
	NodeTypePredicate NodeType = "predicate"
)

// LinkType discriminates relationship flavors.
type LinkType string

const (
	// LinkTypeEvaluation relates a predicate node to its argument nodes.
	LinkTypeEvaluation LinkType = "evaluation"
	// LinkTypeMember states that the first target belongs to the second.
	LinkTypeMember LinkType = "member"
)

// Node is a named vertex in the knowledge store. Type plus name form the
// node's identity; adding the same pair twice yields the same node.
type Node struct {
	Type NodeType
	Name string
}

// Key returns the node's identity key within a store.
func (n *Node) Key() string {
	return string(n.Type) + ":" + n.Name
}

// Link is an ordered relationship fact over one or more nodes. Type plus the
// ordered target keys form the link's identity.
type Link struct {
	Type    LinkType
	Targets []*Node
}

// Key returns the link's identity key within a store.
func (l *Link) Key() string {
	keys := make([]string, len(l.Targets))
	for i, t := range l.Targets {
		keys[i] = t.Key()
	}
	return string(l.Type) + "(" + strings.Join(keys, ",") + ")"
}

// Store is the minimal contract the chat core requires from an external
// knowledge store. Writes are idempotent: adding an existing identical node
// or link is a no-op returning the existing fact, so retries after transient
// failures are safe without dedup logic.
//
// RemoveLink exists so a conversation can drop its mirrored turn facts on
// clear; it is the only destructive operation the core issues.
type Store interface {
	AddNode(typ NodeType, name string) (*Node, error)
	// GetNode returns (nil, nil) when no such node exists.
	GetNode(typ NodeType, name string) (*Node, error)
	AddLink(typ LinkType, targets ...*Node) (*Link, error)
	// IncomingLinks returns every link that has node among its targets.
	IncomingLinks(node *Node) ([]*Link, error)
	RemoveLink(link *Link) error
}
