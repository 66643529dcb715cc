package models

import "fmt"

// Cluster owns every node, keyed by id, in insertion order
type Cluster struct {
	nodes map[string]*Node
	order []string
}

// NewCluster creates an empty cluster
func NewCluster() *Cluster {
	return &Cluster{
		nodes: make(map[string]*Node),
		order: make([]string, 0),
	}
}

// Add inserts a node, replacing any node with the same id in place
func (c *Cluster) Add(node *Node) {
	if _, exists := c.nodes[node.ID]; !exists {
		c.order = append(c.order, node.ID)
	}
	c.nodes[node.ID] = node
}

// Remove deletes a node. Callers must make sure it runs no jobs.
func (c *Cluster) Remove(id string) bool {
	if _, ok := c.nodes[id]; !ok {
		return false
	}
	delete(c.nodes, id)
	for i, nid := range c.order {
		if nid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Get retrieves a node by ID
func (c *Cluster) Get(id string) (*Node, bool) {
	node, ok := c.nodes[id]
	return node, ok
}

// Len returns the number of nodes
func (c *Cluster) Len() int {
	return len(c.order)
}

// Nodes returns every node in insertion order
func (c *Cluster) Nodes() []*Node {
	out := make([]*Node, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.nodes[id])
	}
	return out
}

// ManagedNodes returns the nodes tracked by the reconciler's state
func (c *Cluster) ManagedNodes() []*Node {
	out := make([]*Node, 0, len(c.order))
	for _, id := range c.order {
		if node := c.nodes[id]; node.Managed {
			out = append(out, node)
		}
	}
	return out
}

// Clear removes every node
func (c *Cluster) Clear() {
	c.nodes = make(map[string]*Node)
	c.order = c.order[:0]
}

// NextNodeID returns the lowest free id of the form node-<n>
func (c *Cluster) NextNodeID() string {
	id, _ := c.NextNodeIDFrom(0)
	return id
}

// NextNodeIDFrom returns the lowest free node-<n> id with n >= start, and n.
// Callers creating several nodes pass n+1 back in to avoid rescanning.
func (c *Cluster) NextNodeIDFrom(start int) (string, int) {
	for i := start; ; i++ {
		id := fmt.Sprintf("node-%d", i)
		if _, taken := c.nodes[id]; !taken {
			return id, i
		}
	}
}
