package graph

// Walk visits the subtree rooted at n in pre-order. Returning false from fn
// skips the children of the visited node.
func Walk(n *Node, fn func(n *Node, depth int) bool) {
	if n == nil {
		return
	}
	walk(n, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.children {
		walk(c, depth+1, fn)
	}
}

// Find returns the node with the given tag.
func Find(root *Node, tag Tag) (*Node, bool) {
	path := FindPath(root, tag)
	if path == nil {
		return nil, false
	}
	return path[len(path)-1], true
}

// FindPath returns the chain of nodes from root to the node with the given
// tag, or nil if the tag is not present.
func FindPath(root *Node, tag Tag) []*Node {
	if root == nil {
		return nil
	}
	var path []*Node
	if findPath(root, tag, &path) {
		return path
	}
	return nil
}

func findPath(n *Node, tag Tag, path *[]*Node) bool {
	*path = append(*path, n)
	if n.tag == tag {
		return true
	}
	for _, c := range n.children {
		if findPath(c, tag, path) {
			return true
		}
	}
	*path = (*path)[:len(*path)-1]
	return false
}

// Count returns the number of nodes in the subtree rooted at n.
func Count(n *Node) int {
	total := 0
	Walk(n, func(*Node, int) bool {
		total++
		return true
	})
	return total
}
