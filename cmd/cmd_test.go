package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScene = `{
  "version": "1",
  "surface": 1,
  "revisions": [
    {"kind": "RootView", "children": [
      {"tag": 2, "kind": "View", "children": [
        {"tag": 3, "kind": "Image", "props": {"uri": "a.png"}}
      ]},
      {"tag": 4, "kind": "Paragraph", "children": [
        {"tag": 5, "kind": "RawText", "props": {"text": "hello"}}
      ]}
    ]},
    {"kind": "RootView", "children": [
      {"tag": 4, "kind": "Paragraph", "children": [
        {"tag": 5, "kind": "RawText", "props": {"text": "bye"}}
      ]},
      {"tag": 2, "kind": "View", "children": [
        {"tag": 3, "kind": "Image", "props": {"uri": "a.png"}}
      ]}
    ]}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestReplay(t *testing.T) {
	scene := writeFile(t, "scene.json", testScene)

	out, err := run(t, "replay", scene)
	require.NoError(t, err)
	assert.Contains(t, out, "# revision 1 (base 0,")
	assert.Contains(t, out, "# revision 2 (base 1,")
	assert.Contains(t, out, `Create {type: "Image", tag: 3}`)
	assert.Contains(t, out, `Insert {type: "View", parentTag: 1, index: 0, tag: 2}`)
	assert.Contains(t, out, `Update {type: "RawText", tag: 5}`)
}

func TestReplayCoalesced(t *testing.T) {
	scene := writeFile(t, "scene.json", testScene)

	out, err := run(t, "replay", "--coalesce", "-q", scene)
	require.NoError(t, err)
	assert.Contains(t, out, "# revision 2 (base 0,")
	assert.Contains(t, out, "2 coalesced")
	assert.NotContains(t, out, "# revision 1 ")
	assert.NotContains(t, out, "Create {")
}

func TestReplayMissingScene(t *testing.T) {
	_, err := run(t, "replay", filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestReplayJournal(t *testing.T) {
	scene := writeFile(t, "scene.json", testScene)
	db := filepath.Join(t.TempDir(), "journal.db")

	_, err := run(t, "--journal", db, "replay", scene)
	require.NoError(t, err)

	out, err := run(t, "journal", db)
	require.NoError(t, err)
	assert.Contains(t, out, "surface 1")
	assert.Contains(t, out, "REVISION")
	assert.Contains(t, out, "tooling")
	assert.Contains(t, out, "TRANSACTION")

	out, err = run(t, "journal", "--surface", "7", db)
	require.NoError(t, err)
	assert.Contains(t, out, "surface 7")
	assert.NotContains(t, out, "tooling")
}

func TestStress(t *testing.T) {
	out, err := run(t, "stress", "--duration", "100ms", "--committers", "1", "--readers", "1", "--consumer")
	require.NoError(t, err)
	assert.Contains(t, out, "commits=")
	assert.Contains(t, out, "revision=")
}

func TestConfigFile(t *testing.T) {
	cfg := writeFile(t, "revtree.hcl", `
log_level = "debug"

stress {
  committers = 1
  readers    = 1
  duration   = "50ms"
}
`)
	out, err := run(t, "--config", cfg, "stress")
	require.NoError(t, err)
	assert.Contains(t, out, "commits=")
}

func TestInvalidConfig(t *testing.T) {
	cfg := writeFile(t, "revtree.hcl", `log_level = "loud"`)
	_, err := run(t, "--config", cfg, "stress")
	assert.Error(t, err)

	_, err = run(t, "--log-level", "loud", "stress")
	assert.Error(t, err)
}
