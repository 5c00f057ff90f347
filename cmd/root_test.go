package cmd

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

func TestRootCommandShape(t *testing.T) {
	if rootCmd.Use != "dramatis" {
		t.Errorf("Use = %q, want %q", rootCmd.Use, "dramatis")
	}
	if rootCmd.RunE == nil {
		t.Error("root command should run the MCP server by default")
	}

	want := map[string]bool{"version": false, "backfill": false, "health": false}
	for _, sub := range rootCmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestVersionCommandOutput(t *testing.T) {
	origVersion, origBuildTime, origCommit := Version, BuildTime, GitCommit
	defer func() {
		Version, BuildTime, GitCommit = origVersion, origBuildTime, origCommit
	}()
	Version = "1.2.3"
	BuildTime = "2026-01-01T00:00:00Z"
	GitCommit = "abc123"

	// versionCmd prints to stdout directly.
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	os.Stdout = w

	versionCmd.Run(versionCmd, nil)

	_ = w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("reading captured output: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"dramatis 1.2.3", "Build Time: 2026-01-01T00:00:00Z", "Git Commit: abc123"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
