package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/newtron-network/sessioncheck/pkg/audit"
	"github.com/newtron-network/sessioncheck/pkg/snapshot"
	"github.com/newtron-network/sessioncheck/pkg/util"
)

const fabric = "testdata/fabric.yaml"

// execute runs the root command with fresh flag state and an isolated
// settings file.
func execute(t *testing.T, settingsFile string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--settings", settingsFile}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags undoes the previous execution; cobra commands are package
// globals and keep parsed values.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		// slice values append once set; their variables are cleared below
		if !strings.HasSuffix(f.Value.Type(), "Slice") {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	for _, c := range append([]*cobra.Command{cmd}, cmd.Commands()...) {
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	}
	checkForeignGroups, checkForeignPrefixes = nil, nil
}

type counts struct {
	RunID  string         `json:"run_id"`
	Counts map[string]int `json:"counts"`
}

func runJSON(t *testing.T, args ...string) counts {
	t.Helper()
	out, err := execute(t, filepath.Join(t.TempDir(), "settings.json"), append([]string{"check", "--json"}, args...)...)
	if err != nil {
		t.Fatalf("check %v: %v\n%s", args, err, out)
	}
	var c counts
	if err := json.Unmarshal([]byte(out), &c); err != nil {
		t.Fatalf("decoding JSON output: %v\n%s", err, out)
	}
	return c
}

func TestCheck_JSON(t *testing.T) {
	c := runJSON(t, fabric)

	want := map[string]int{
		"UNIQUE_MATCH":      4,
		"PASSIVE":           1,
		"UNKNOWN_REMOTE_IP": 1,
		"BROKEN":            1,
		"IPSEC_BROKEN":      1,
	}
	for cat, n := range want {
		if c.Counts[cat] != n {
			t.Errorf("Counts[%s] = %d, want %d", cat, c.Counts[cat], n)
		}
	}
	if c.RunID == "" {
		t.Error("RunID should be set")
	}
}

func TestCheck_Selectors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"all nodes", nil, 4},
		{"leaf1 only", []string{"--node1", "leaf1"}, 2},
		{"bgp only", []string{"--protocols", "bgp"}, 2},
		{"no remote candidates", []string{"--node2", "nothing"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := runJSON(t, append([]string{fabric}, tt.args...)...)
			if got := c.Counts["UNIQUE_MATCH"]; got != tt.want {
				t.Errorf("UNIQUE_MATCH = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCheck_ForeignPrefix(t *testing.T) {
	c := runJSON(t, fabric, "--foreign-prefix", "198.51.100.0/24")
	if c.Counts["IGNORED_FOREIGN"] != 1 {
		t.Errorf("IGNORED_FOREIGN = %d, want 1", c.Counts["IGNORED_FOREIGN"])
	}
	if c.Counts["BROKEN"] != 0 {
		t.Errorf("BROKEN = %d, want 0", c.Counts["BROKEN"])
	}
}

func TestCheck_QuestionFile(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(fabric)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "fabric.yaml"), data, 0644); err != nil {
		t.Fatal(err)
	}
	q := filepath.Join(dir, "leaves.yaml")
	if err := os.WriteFile(q, []byte("snapshot: fabric.yaml\nnode1: leaf.*\nprotocols: [bgp]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if c := runJSON(t, "-q", q); c.Counts["UNIQUE_MATCH"] != 1 {
		t.Errorf("question only: UNIQUE_MATCH = %d, want 1", c.Counts["UNIQUE_MATCH"])
	}
	if c := runJSON(t, "-q", q, "--protocols", "bgp,ospf"); c.Counts["UNIQUE_MATCH"] != 2 {
		t.Errorf("flag override: UNIQUE_MATCH = %d, want 2", c.Counts["UNIQUE_MATCH"])
	}
}

func TestCheck_TextOutputs(t *testing.T) {
	settingsFile := filepath.Join(t.TempDir(), "settings.json")

	out, err := execute(t, settingsFile, "check", fabric, "--summary")
	if err != nil {
		t.Fatalf("--summary: %v", err)
	}
	if !regexp.MustCompile(`(?m)^UNIQUE_MATCH\s+4$`).MatchString(out) {
		t.Errorf("--summary output:\n%s", out)
	}

	out, err = execute(t, settingsFile, "check", fabric, "--category", "PASSIVE")
	if err != nil {
		t.Fatalf("--category: %v", err)
	}
	if !strings.HasPrefix(out, "PASSIVE:\n  spine1:\n    default:\n") || strings.Contains(out, "UNIQUE_MATCH") {
		t.Errorf("--category output:\n%s", out)
	}

	out, err = execute(t, settingsFile, "check", fabric)
	if err != nil {
		t.Fatalf("text report: %v", err)
	}
	for _, want := range []string{"UNIQUE_MATCH:", "UNKNOWN_REMOTE_IP:", "remoteIp: 198.51.100.9/32"} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q:\n%s", want, out)
		}
	}
}

func TestCheck_FailOnBroken(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "settings.json"), "check", fabric, "--summary", "--fail-on-broken")
	if err == nil || err.Error() != "1 broken sessions" {
		t.Errorf("error = %v, want 1 broken sessions", err)
	}
}

func TestCheck_MetricsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessioncheck.prom")
	if _, err := execute(t, filepath.Join(t.TempDir(), "settings.json"), "check", fabric, "--summary", "--metrics-file", path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	if !strings.Contains(string(data), `status="UNIQUE_MATCH"`) {
		t.Errorf("metrics file:\n%s", data)
	}
}

func TestCheck_SnapshotFromSettings(t *testing.T) {
	settingsFile := filepath.Join(t.TempDir(), "settings.json")

	if _, err := execute(t, settingsFile, "check"); err == nil || !strings.Contains(err.Error(), "snapshot required") {
		t.Errorf("error = %v, want snapshot required", err)
	}

	abs, err := filepath.Abs(fabric)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, settingsFile, "settings", "set", "snapshot", abs); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, settingsFile, "check", "--summary"); err != nil {
		t.Errorf("check with default snapshot: %v", err)
	}
}

func TestCheck_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"protocol", []string{"--protocols", "rip"}, `unknown protocol "rip"`},
		{"prefix", []string{"--foreign-prefix", "10.0.0.0/40"}, "--foreign-prefix"},
		{"regex", []string{"--node1", "("}, "invalid regex"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, filepath.Join(t.TempDir(), "settings.json"), append([]string{"check", fabric}, tt.args...)...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestSettingsCommands(t *testing.T) {
	settingsFile := filepath.Join(t.TempDir(), "settings.json")

	if _, err := execute(t, settingsFile, "settings", "set", "workers", "8"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, settingsFile, "settings", "get", "workers")
	if err != nil || out != "8\n" {
		t.Errorf("get workers = %q, %v", out, err)
	}
	if _, err := execute(t, settingsFile, "settings", "set", "workers", "many"); err == nil {
		t.Error("set workers many should fail")
	}
	if _, err := execute(t, settingsFile, "settings", "get", "color"); err == nil {
		t.Error("get of unknown setting should fail")
	}

	out, err = execute(t, settingsFile, "settings", "show")
	if err != nil || !regexp.MustCompile(`(?m)^workers\s+8$`).MatchString(out) {
		t.Errorf("show = %q, %v", out, err)
	}

	if _, err := execute(t, settingsFile, "settings", "clear"); err != nil {
		t.Fatal(err)
	}
	if out, _ := execute(t, settingsFile, "settings", "get", "workers"); out != "(not set)\n" {
		t.Errorf("get after clear = %q", out)
	}
}

func TestParseTargets(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		direct  bool
		want    []snapshot.Target
		wantErr bool
	}{
		{
			name: "named ssh",
			args: []string{"leaf1=10.0.0.11", "spine1"},
			want: []snapshot.Target{
				{Hostname: "leaf1", Host: "10.0.0.11"},
				{Hostname: "spine1", Host: "spine1"},
			},
		},
		{
			name:   "direct redis",
			args:   []string{"leaf1=127.0.0.1:6379"},
			direct: true,
			want:   []snapshot.Target{{Hostname: "leaf1", RedisAddr: "127.0.0.1:6379"}},
		},
		{name: "empty host", args: []string{"leaf1="}, wantErr: true},
		{name: "duplicate", args: []string{"leaf1=a", "leaf1=b"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTargets(tt.args, tt.direct)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTargets() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseTargets() = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("target[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestHistory(t *testing.T) {
	dir := t.TempDir()
	settingsFile := filepath.Join(dir, "settings.json")
	runLog := filepath.Join(dir, "runs.log")

	if _, err := execute(t, settingsFile, "history"); err == nil || !strings.Contains(err.Error(), "no run log") {
		t.Fatalf("history without a log: err = %v", err)
	}

	if _, err := execute(t, settingsFile, "check", fabric, "--summary", "--audit-log", runLog); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, settingsFile, "settings", "set", "audit_log", runLog); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, settingsFile, "check", fabric, "--summary", "--protocols", "ospf"); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, settingsFile, "history", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var events []audit.Event
	if err := json.Unmarshal([]byte(out), &events); err != nil {
		t.Fatalf("decoding history: %v\n%s", err, out)
	}
	if len(events) != 2 {
		t.Fatalf("got %d runs, want 2", len(events))
	}
	// newest first: the OSPF-only run has nothing broken
	if events[0].Broken != 0 || events[0].Sessions != 2 {
		t.Errorf("ospf run = %+v", events[0])
	}
	if events[1].Broken != 1 || events[1].Snapshot != "fabric" || !events[1].Success {
		t.Errorf("full run = %+v", events[1])
	}

	out, err = execute(t, settingsFile, "history", "--broken")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "broken") {
		t.Errorf("history --broken:\n%s", out)
	}

	out, err = execute(t, settingsFile, "history", "--snapshot", "other")
	if err != nil {
		t.Fatal(err)
	}
	if out != "No runs recorded.\n" {
		t.Errorf("history --snapshot other = %q", out)
	}

	out, err = execute(t, settingsFile, "history", "--run", events[1].ID[:8])
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Run:      " + events[1].ID, "Snapshot: fabric", "UNIQUE_MATCH", "IPSEC_BROKEN"} {
		if !strings.Contains(out, want) {
			t.Errorf("history --run output missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, settingsFile, "history", "--run", "no-such-run"); !errors.Is(err, audit.ErrRunNotFound) {
		t.Errorf("history --run no-such-run: err = %v, want ErrRunNotFound", err)
	}
}

func TestLogFormat(t *testing.T) {
	settingsFile := filepath.Join(t.TempDir(), "settings.json")
	if _, err := execute(t, settingsFile, "--log-format", "yaml", "version"); err == nil || !strings.Contains(err.Error(), "unknown log format") {
		t.Errorf("--log-format yaml: err = %v", err)
	}
	if _, err := execute(t, settingsFile, "--log-format", "json", "version"); err != nil {
		t.Errorf("--log-format json: %v", err)
	}
	util.ConfigureLogging("warn", util.LogFormatText)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, filepath.Join(t.TempDir(), "settings.json"), "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "sessioncheck dev build") {
		t.Errorf("version output = %q", out)
	}
}
