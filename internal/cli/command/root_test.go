package command

import (
	"strings"
	"testing"
)

func TestApp(t *testing.T) {
	app := App()
	if app.Name != "wsnap" {
		t.Errorf("Name = %q, want wsnap", app.Name)
	}

	commands := make(map[string]bool)
	for _, cmd := range app.Commands {
		commands[cmd.Name] = true
	}
	for _, name := range []string{"save", "restore", "show", "list", "delete", "start-command", "heal", "backup", "config", "version"} {
		if !commands[name] {
			t.Errorf("missing command: %s", name)
		}
	}

	flags := make(map[string]bool)
	for _, f := range app.Flags {
		flags[f.Names()[0]] = true
	}
	for _, name := range []string{"config", "data-dir", "workspace", "output", "wide", "verbose"} {
		if !flags[name] {
			t.Errorf("missing global flag: %s", name)
		}
	}
}

func TestApp_InvalidOutput(t *testing.T) {
	_, err := runApp(t, "", "-o", "xml", "version")
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("err = %v, want unknown output format", err)
	}
}

func TestGlobalFlags_Overrides(t *testing.T) {
	f := &GlobalFlags{DataDir: "/tmp/data"}
	got := f.overrides()
	if len(got) != 1 || got["storage.data_dir"] != "/tmp/data" {
		t.Errorf("overrides = %v", got)
	}
	if len((&GlobalFlags{}).overrides()) != 0 {
		t.Error("no flags should give no overrides")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "wsnap ") {
		t.Errorf("version = %q", out)
	}

	out, err = runApp(t, "", "-o", "json", "version")
	if err != nil {
		t.Fatalf("version json: %v", err)
	}
	if !strings.Contains(out, `"go_version"`) {
		t.Errorf("version json = %q", out)
	}
}
