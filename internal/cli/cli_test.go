package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/autorecord/autorecord/internal/api"
	"github.com/autorecord/autorecord/internal/config"
	"github.com/autorecord/autorecord/internal/liveset"
	"github.com/autorecord/autorecord/internal/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// seedBase writes a live set with alice and bob and a marker for alice.
func seedBase(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	live := filepath.Join(base, config.JSONDirName, config.LiveUsersFile)
	if err := liveset.WriteSnapshot(live, liveset.Snapshot{{Username: "alice"}, {Username: "bob"}}); err != nil {
		t.Fatal(err)
	}
	lockDir := filepath.Join(base, config.LockDirName)
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(lockDir, "alice.lock"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	return base
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != version.Full() {
		t.Errorf("output: got %q, want %q", out, version.Full())
	}
}

func TestStatusCmd_Table(t *testing.T) {
	base := seedBase(t)
	out, err := execute(t, "status", "--base-dir", base, "--config", filepath.Join(base, "missing.yaml"))
	if err == nil {
		t.Fatal("explicit missing --config: got nil error")
	}

	out, err = execute(t, "status", "--base-dir", base)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Currently Recording: 1/2", "alice", "bob", "■ Recording"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusCmd_JSON(t *testing.T) {
	base := seedBase(t)
	out, err := execute(t, "status", "--json", "--base-dir", base)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}

	var resp api.StatusResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out)
	}
	if resp.LiveCount != 2 || resp.RecordingCount != 1 {
		t.Errorf("counts: got %d/%d, want 2/1", resp.LiveCount, resp.RecordingCount)
	}
	if len(resp.Rows) != 2 || !resp.Rows[0].Recording || resp.Rows[1].Recording {
		t.Errorf("rows: got %+v", resp.Rows)
	}
}

func TestStatusCmd_NobodyLive(t *testing.T) {
	out, err := execute(t, "status", "--base-dir", t.TempDir())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Nobody is live.") {
		t.Errorf("output: got %q", out)
	}
}

func TestRecorderRunner_DefaultsToRecordSubcommand(t *testing.T) {
	base := t.TempDir()
	cfg, err := config.Load(filepath.Join(base, "none.yaml"), true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.BaseDir = base

	r, err := recorderRunner(cfg)
	if err != nil {
		t.Fatalf("recorderRunner: %v", err)
	}
	if len(r.Args) == 0 || r.Args[0] != "record" {
		t.Errorf("args: got %v, want record subcommand", r.Args)
	}
	absBase, _ := filepath.Abs(base)
	if r.Dir != absBase {
		t.Errorf("Dir: got %q, want %q", r.Dir, absBase)
	}
	if r.LogPath != filepath.Join(absBase, "logs", "recorder.log") {
		t.Errorf("LogPath: got %q", r.LogPath)
	}
}

func TestRecorderRunner_ConfiguredExecutable(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "none.yaml"), true)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Recorder.Executable = "/opt/recorder/download_live"
	cfg.Recorder.Args = []string{"--fast"}

	r, err := recorderRunner(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if r.Executable != "/opt/recorder/download_live" || len(r.Args) != 1 || r.Args[0] != "--fast" {
		t.Errorf("runner: got %s %v", r.Executable, r.Args)
	}
}

func TestParseLevel(t *testing.T) {
	for _, ok := range []string{"debug", "info", "warn", "error"} {
		if _, err := parseLevel(ok); err != nil {
			t.Errorf("parseLevel(%q): %v", ok, err)
		}
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Error("parseLevel(loud): got nil error")
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"run", "record", "status", "version"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q: got %v, %v", name, c, err)
		}
	}
	for _, flag := range []string{"headless", "nogui"} {
		if root.Flags().Lookup(flag) == nil {
			t.Errorf("root flag --%s missing", flag)
		}
	}
}
