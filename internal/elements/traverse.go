package elements

// LeafNodes returns the leaves under node depth-first, in the order children
// were added. A leaf returns itself. This order is what maps pixel i of a
// display shape to its logical light.
func LeafNodes(node Node) []Node {
	if node == nil {
		return nil
	}

	var leaves []Node
	var walk func(n Node)
	walk = func(n Node) {
		if n.IsLeaf() {
			leaves = append(leaves, n)
			return
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(node)
	return leaves
}

// LightCount is the number of leaves under node.
func LightCount(node Node) int {
	return len(LeafNodes(node))
}

// Walk visits node and then every descendant depth-first. Returning false from
// fn skips that node's children.
func Walk(node Node, fn func(Node) bool) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for _, c := range node.Children() {
		Walk(c, fn)
	}
}
