// Command scenegen writes a random scene file for revtree replay.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/agentic-research/revtree/internal/fixture"
	"github.com/agentic-research/revtree/internal/graph"
)

func main() {
	surface := flag.Int("surface", 1, "Surface id of the scene")
	steps := flag.Int("steps", 100, "Number of revisions to generate")
	seed := flag.Int64("seed", 0, "Random seed (0 = time based)")
	out := flag.String("out", "scene.json", "Output file")
	verbose := flag.Bool("v", false, "Print the edit applied at each step")
	flag.Parse()

	if *steps <= 0 {
		flag.Usage()
		os.Exit(1)
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	scene, edits := fixture.Generate(rand.New(rand.NewSource(*seed)), graph.SurfaceID(*surface), *steps)
	if *verbose {
		for i, e := range edits {
			fmt.Printf("%4d %s\n", i+1, e)
		}
	}

	data, err := json.MarshalIndent(scene, "", "  ")
	if err != nil {
		fatal(err)
	}
	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fatal(err)
		}
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fatal(err)
	}
	fmt.Printf("wrote %d revisions to %s (seed %d)\n", *steps, *out, *seed)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
