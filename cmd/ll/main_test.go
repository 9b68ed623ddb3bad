package main

import (
	"bytes"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "ll dev") {
		t.Errorf("output = %q", out)
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"version", "db", "serve", "process", "status"}
	for _, name := range want {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestProcessCmd_RequiresArg(t *testing.T) {
	if _, err := runCommand(t, "process"); err == nil {
		t.Error("expected error without email file")
	}
}

func TestStatusCmd_MissingConfig(t *testing.T) {
	if _, err := runCommand(t, "status", "--config", "/nonexistent/loadline.yaml"); err == nil {
		t.Error("expected error for missing config")
	}
}
