package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommandListsSubcommands(t *testing.T) {
	root := buildRootCommand(false)

	want := []string{"onboard", "run", "chat", "learn", "status", "version"}
	got := map[string]bool{}
	for _, cmd := range root.Commands() {
		got[cmd.Name()] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestRootCommandHelpSucceeds(t *testing.T) {
	output, err := runRootCommandForTest("--help")
	if err != nil {
		t.Fatalf("execute --help: %v\nOutput:\n%s", err, output)
	}
	if !strings.Contains(output, "dmpilot") {
		t.Fatalf("help output missing binary name:\n%s", output)
	}
}

func TestRootCommandWithoutSubcommandFails(t *testing.T) {
	if _, err := runRootCommandForTest(); err == nil {
		t.Fatalf("expected bare invocation to return an error")
	}
}

func TestVersionCommandPrintsNothingToCommandOutput(t *testing.T) {
	// version writes to stdout directly; the command itself must not error.
	if _, err := runRootCommandForTest("version"); err != nil {
		t.Fatalf("execute version: %v", err)
	}
}

func runRootCommandForTest(args ...string) (string, error) {
	root := buildRootCommand(false)
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}
