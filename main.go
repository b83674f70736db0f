package main

import "github.com/agentic-research/revtree/cmd"

func main() {
	cmd.Execute()
}
