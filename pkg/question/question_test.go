package question

import (
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/newtron-network/sessioncheck/pkg/session"
	"github.com/newtron-network/sessioncheck/pkg/util"
)

func TestParse(t *testing.T) {
	q, err := Parse([]byte(`
name: fabric
node1: "leaf.*"
protocols: [bgp, ipsec]
foreign:
  groups: [TRANSIT]
  prefixes: ["192.0.2.0/24", "198.51.100.7"]
workers: 4
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	opts, err := q.Options()
	if err != nil {
		t.Fatalf("Options() error = %v", err)
	}

	if opts.Node1 != "leaf.*" || opts.Node2 != ".*" {
		t.Errorf("selectors = %q, %q", opts.Node1, opts.Node2)
	}
	if want := []session.Protocol{session.ProtocolBGP, session.ProtocolIPsec}; !reflect.DeepEqual(opts.Protocols, want) {
		t.Errorf("Protocols = %v, want %v", opts.Protocols, want)
	}
	wantPrefixes := []netip.Prefix{
		netip.MustParsePrefix("192.0.2.0/24"),
		netip.MustParsePrefix("198.51.100.7/32"),
	}
	if !reflect.DeepEqual(opts.ForeignPrefixes, wantPrefixes) {
		t.Errorf("ForeignPrefixes = %v, want %v", opts.ForeignPrefixes, wantPrefixes)
	}
	if opts.Workers != 4 {
		t.Errorf("Workers = %d, want 4", opts.Workers)
	}
}

func TestParse_Defaults(t *testing.T) {
	q, err := Parse([]byte(`name: empty`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if q.Node1 != ".*" || q.Node2 != ".*" {
		t.Errorf("selectors = %q, %q, want .*", q.Node1, q.Node2)
	}
	if want := []string{"bgp", "ospf", "ipsec"}; !reflect.DeepEqual(q.Protocols, want) {
		t.Errorf("Protocols = %v, want %v", q.Protocols, want)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad protocol", "protocols: [rip]", `unknown protocol "rip"`},
		{"bad prefix", "foreign: {prefixes: [10.0.0.0/33]}", "foreign.prefixes"},
		{"bad regex", `node2: "("`, "node2: invalid regex"},
		{"negative workers", "workers: -2", "workers must not be negative"},
		{"bad yaml", "protocols: [bgp", "parsing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_ReportsAllErrors(t *testing.T) {
	_, err := Parse([]byte("protocols: [rip, isis]\nforeign: {prefixes: [nope]}"))
	var ve *util.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("Errors = %v, want 3", ve.Errors)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dc1-sessions.yaml")
	if err := os.WriteFile(path, []byte("snapshot: snapshots/dc1.yaml\n"), 0644); err != nil {
		t.Fatal(err)
	}

	q, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if q.Name != "dc1-sessions" {
		t.Errorf("Name = %q, want dc1-sessions", q.Name)
	}
	if got, want := q.SnapshotPath(), filepath.Join(dir, "snapshots", "dc1.yaml"); got != want {
		t.Errorf("SnapshotPath() = %q, want %q", got, want)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() of missing file should fail")
	}
}
