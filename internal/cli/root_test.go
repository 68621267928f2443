package cli

import "testing"

func TestBuildRootCommand(t *testing.T) {
	root := BuildRootCommand("filesystem-connector", "Filesystem Connector")

	if root.Name != "filesystem-connector" {
		t.Errorf("Name = %q, want filesystem-connector", root.Name)
	}
	if len(root.Commands) == 0 {
		t.Error("expected root command to have subcommands")
	}

	expected := []string{"version", "discover", "wait", "status"}
	present := make(map[string]bool)
	for _, cmd := range root.Commands {
		present[cmd.Name] = true
	}
	for _, name := range expected {
		if !present[name] {
			t.Errorf("expected subcommand %q not found", name)
		}
	}
}

func TestBuildVersionCommand(t *testing.T) {
	cmd := buildVersionCommand()
	if cmd.Name != "version" {
		t.Errorf("Name = %q, want version", cmd.Name)
	}
	if cmd.Action == nil {
		t.Error("expected version command to have an action")
	}
}

func TestSanitizeArgsDropsUnknownRootFlag(t *testing.T) {
	got := SanitizeArgs([]string{"connector", "--bogus", "--environment=test"})
	want := []string{"connector", "--environment=test"}

	if len(got) != len(want) {
		t.Fatalf("SanitizeArgs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SanitizeArgs() = %v, want %v", got, want)
		}
	}
}

func TestSanitizeArgsLeavesSubcommandFlagsAlone(t *testing.T) {
	got := SanitizeArgs([]string{"connector", "status", "--connector-id", "fs"})
	want := []string{"connector", "status", "--connector-id", "fs"}

	if len(got) != len(want) {
		t.Fatalf("SanitizeArgs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SanitizeArgs() = %v, want %v", got, want)
		}
	}
}
