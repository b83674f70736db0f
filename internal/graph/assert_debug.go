//go:build revtreedebug

package graph

// DebugAssertions turns structural violations into panics.
const DebugAssertions = true
