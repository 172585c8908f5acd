package analysis

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/newtron-network/sessioncheck/internal/testutil"
	"github.com/newtron-network/sessioncheck/pkg/classify"
	"github.com/newtron-network/sessioncheck/pkg/metrics"
	"github.com/newtron-network/sessioncheck/pkg/model"
	"github.com/newtron-network/sessioncheck/pkg/report"
	"github.com/newtron-network/sessioncheck/pkg/session"
	"github.com/newtron-network/sessioncheck/pkg/util"
)

func newAnalyzer(t *testing.T, opts Options) *Analyzer {
	t.Helper()
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a.WithMetrics(metrics.NewRegistry())
}

func run(t *testing.T, opts Options, snap *model.Snapshot) *report.Report {
	t.Helper()
	rep, err := newAnalyzer(t, opts).Run(context.Background(), snap)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return rep
}

// sessionOf returns the session of the single declaration on host
func sessionOf(t *testing.T, rep *report.Report, host string) classify.Session {
	t.Helper()
	for _, byKey := range rep.Details[host] {
		for _, s := range byKey {
			return s
		}
	}
	t.Fatalf("no session for %s", host)
	return classify.Session{}
}

// fabric is a small network exercising every protocol:
//
//	spine1 <-eBGP-> leaf1, spine1 <-eBGP-> leaf2 (half open), leaf1 <-OSPF-> leaf2,
//	fw1 <-IPsec-> fw2, leaf1 -> transit (foreign group)
func fabric() *model.Snapshot {
	b := testutil.NewSnapshot()
	b.Node("spine1").
		Iface("Loopback0", "10.255.0.1/32").
		Iface("Ethernet0", "10.1.0.0/31").
		Iface("Ethernet4", "10.1.0.2/31").
		BGP(65000).
		Neighbor("10.1.0.1", 65001, "10.1.0.0").
		Neighbor("10.1.0.3", 65002, "10.1.0.2")
	b.Node("leaf1").
		Iface("Loopback0", "10.255.0.11/32").
		Iface("Ethernet0", "10.1.0.1/31").
		Iface("Ethernet8", "10.2.0.0/31").
		BGP(65001).
		Neighbor("10.1.0.0", 65000, "10.1.0.1").
		NeighborWith(&model.BGPNeighbor{
			Peer:         netip.MustParsePrefix("192.0.2.1/32"),
			RemoteAS:     174,
			LocalAddress: netip.MustParseAddr("10.1.0.1"),
			PeerGroup:    "TRANSIT",
		}).
		OSPF("Ethernet8", "0", 10)
	b.Node("leaf2").
		Iface("Loopback0", "10.255.0.12/32").
		Iface("Ethernet0", "10.1.0.3/31").
		Iface("Ethernet8", "10.2.0.1/31").
		BGP(65002).
		OSPF("Ethernet8", "0", 10)
	ike := []model.IKEProposal{{Encryption: "aes-256-cbc", Integrity: "sha256", DHGroup: "group14"}}
	esp := []model.IPsecProposal{{Protocol: "esp", Encryption: "aes-256-cbc", Integrity: "sha256"}}
	b.Node("fw1").Iface("Ethernet0", "198.51.100.1/30").VPN(&model.IPsecVPN{
		Name:           "to-fw2",
		Gateway:        model.IKEGateway{RemoteAddress: netip.MustParseAddr("198.51.100.2"), ExternalInterface: "Ethernet0"},
		IKEProposals:   ike,
		IPsecProposals: esp,
		PreSharedKey:   "s3cret",
	})
	b.Node("fw2").Iface("Ethernet0", "198.51.100.2/30").VPN(&model.IPsecVPN{
		Name:           "to-fw1",
		Gateway:        model.IKEGateway{RemoteAddress: netip.MustParseAddr("198.51.100.1"), ExternalInterface: "Ethernet0"},
		IKEProposals:   ike,
		IPsecProposals: esp,
		PreSharedKey:   "other",
	})
	return b.Build()
}

func TestRun_Fabric(t *testing.T) {
	defer goleak.VerifyNone(t)

	opts := DefaultOptions()
	opts.ForeignGroups = []string{"TRANSIT"}
	opts.Workers = 3
	rep := run(t, opts, fabric())

	wantCounts := map[classify.Category]int{
		"UNIQUE_MATCH":           6, // spine1<->leaf1 x2, ospf x2, ipsec x2
		"HALF_OPEN":              1, // spine1 -> leaf2
		"IGNORED_FOREIGN":        1,
		"PRESHARED_KEY_MISMATCH": 2,
		"BROKEN":                 1,
		"BGP_BROKEN":             1,
		"EBGP_BROKEN":            1,
		"EBGP_HALF_OPEN":         1,
	}
	if diff := cmp.Diff(wantCounts, rep.Counts); diff != "" {
		t.Errorf("Counts mismatch (-want +got):\n%s", diff)
	}
	if rep.RunID == "" {
		t.Error("RunID not set")
	}
	if rep.Snapshot != "test" {
		t.Errorf("Snapshot = %q, want test", rep.Snapshot)
	}

	halfOpen := rep.Entries(classify.Category(classify.StatusHalfOpen))
	if len(halfOpen) != 1 || halfOpen[0].Hostname != "spine1" || halfOpen[0].Session.Declaration.Name != "10.1.0.3/32" {
		t.Errorf("HALF_OPEN entries = %+v", halfOpen)
	}
}

func TestRun_StatusPerTopology(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *testutil.SnapshotBuilder)
		host  string
		want  classify.Status
		flags []classify.Flag
	}{
		{
			name: "unique match",
			build: func(b *testutil.SnapshotBuilder) {
				b.Node("A").Iface("Ethernet0", "10.0.0.1/31").BGP(65001).Neighbor("10.0.0.2", 65002, "10.0.0.1")
				b.Node("B").Iface("Ethernet0", "10.0.0.2/31").BGP(65002).Neighbor("10.0.0.1", 65001, "10.0.0.2")
			},
			host: "A",
			want: classify.StatusUniqueMatch,
		},
		{
			name: "unowned remote",
			build: func(b *testutil.SnapshotBuilder) {
				b.Node("A").Iface("Ethernet0", "10.0.0.1/31").BGP(65001).Neighbor("10.0.0.2", 65002, "10.0.0.1")
			},
			host: "A",
			want: classify.StatusUnknownRemoteIP,
		},
		{
			name: "anycast remote",
			build: func(b *testutil.SnapshotBuilder) {
				b.Node("A").Iface("Ethernet0", "10.0.0.1/24").BGP(65001).Neighbor("10.0.0.2", 65002, "10.0.0.1")
				for _, h := range []string{"B1", "B2", "B3"} {
					b.Node(h).Iface("Ethernet0", "10.0.0.2/24").BGP(65002).Neighbor("10.0.0.1", 65001, "10.0.0.2")
				}
			},
			host: "A",
			want: classify.StatusMultipleRemotes,
		},
		{
			name: "missing local",
			build: func(b *testutil.SnapshotBuilder) {
				b.Node("A").Iface("Ethernet0", "10.0.0.1/31").BGP(65001).Neighbor("10.0.0.2", 65002, "")
			},
			host: "A",
			want: classify.StatusMissingLocalIP,
		},
		{
			name: "ebgp on loopbacks",
			build: func(b *testutil.SnapshotBuilder) {
				b.Node("A").Iface("Loopback0", "10.0.0.1/32").BGP(65001).Neighbor("10.0.0.2", 65002, "10.0.0.1")
				b.Node("B").Iface("Loopback0", "10.0.0.2/32").BGP(65002).Neighbor("10.0.0.1", 65001, "10.0.0.2")
			},
			host:  "A",
			want:  classify.StatusUniqueMatch,
			flags: []classify.Flag{classify.FlagEBGPLocalOnLoopback, classify.FlagEBGPRemoteOnLoopback},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testutil.NewSnapshot()
			tt.build(b)
			rep := run(t, DefaultOptions(), b.Build())

			got := sessionOf(t, rep, tt.host)
			if got.Status != tt.want {
				t.Errorf("status = %s, want %s", got.Status, tt.want)
			}
			if diff := cmp.Diff(tt.flags, got.Flags); diff != "" {
				t.Errorf("flags mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRun_NodeSelectors(t *testing.T) {
	t.Run("node1 restricts seeds", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Node1 = "spine.*"
		rep := run(t, opts, fabric())
		for host := range rep.Details {
			if host != "spine1" {
				t.Errorf("report contains non-seed host %s", host)
			}
		}
	})

	t.Run("node1 is anchored", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Node1 = "leaf"
		rep := run(t, opts, fabric())
		if rep.Total() != 0 {
			t.Errorf("Total() = %d, want 0 (\"leaf\" must not match leaf1)", rep.Total())
		}
	})

	t.Run("node2 gates candidates", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Node1 = "spine1"
		opts.Node2 = "leaf2"
		rep := run(t, opts, fabric())
		if got := rep.Count(classify.Category(classify.StatusHalfOpen)); got != 2 {
			t.Errorf("HALF_OPEN = %d, want 2 (leaf1 excluded as candidate)", got)
		}
	})

	t.Run("node2 matching no node leaves sessions half open", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Node2 = "nobody"
		rep := run(t, opts, fabric())
		want := map[classify.Status]int{
			classify.StatusHalfOpen:        7,
			classify.StatusUnknownRemoteIP: 1,
			classify.StatusUniqueMatch:     0,
		}
		for st, n := range want {
			if got := rep.Count(classify.Category(st)); got != n {
				t.Errorf("%s = %d, want %d", st, got, n)
			}
		}
		if rep.Total() != 8 {
			t.Errorf("Total() = %d, want 8", rep.Total())
		}
	})
}

func TestRun_ProtocolFilter(t *testing.T) {
	opts := DefaultOptions()
	opts.Protocols = []session.Protocol{session.ProtocolOSPF}
	rep := run(t, opts, fabric())

	if rep.Total() != 2 {
		t.Errorf("Total() = %d, want 2 ospf sessions", rep.Total())
	}
}

func TestRun_EveryDeclarationIsReported(t *testing.T) {
	repeated := func() *model.Snapshot {
		b := testutil.NewSnapshot()
		b.Node("R1").Iface("Ethernet0", "10.0.0.0/31").OSPF("Ethernet0", "0", 10, "10.0.0.1", "10.0.0.1")
		b.Node("R2").Iface("Ethernet0", "10.0.0.1/31").OSPF("eth0", "0", 10).OSPF("Ethernet0", "0", 10)
		return b.Build()
	}

	tests := []struct {
		name string
		snap *model.Snapshot
		want int
	}{
		{"fabric", fabric(), 8},
		{"repeated ospf declarations", repeated(), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, _, err := session.BuildCatalog(context.Background(), tt.snap, session.Options{})
			if err != nil {
				t.Fatalf("BuildCatalog() error = %v", err)
			}
			rep := run(t, DefaultOptions(), tt.snap)

			if cat.Len() != tt.want || rep.Total() != tt.want {
				t.Errorf("catalog = %d, report = %d, want %d", cat.Len(), rep.Total(), tt.want)
			}
			statuses := 0
			for _, st := range classify.Statuses {
				statuses += rep.Count(classify.Category(st))
			}
			if statuses != rep.Total() {
				t.Errorf("status buckets hold %d sessions, report has %d", statuses, rep.Total())
			}
		})
	}
}

func invalidSnapshot() *model.Snapshot {
	b := testutil.NewSnapshot()
	b.Node("A").Iface("Ethernet0", "10.0.0.1/31").BGP(65001).Neighbor("10.0.0.2", 65002, "10.0.0.1")
	b.Node("B").Iface("Ethernet0", "10.0.0.2/31").BGP(65002).Neighbor("10.0.0.1", 65001, "10.0.0.2")
	b.Node("C").VRF("Vrf_BLUE").BGP(65003)
	return b.Build()
}

func TestRun_ConfigInvariantIsFatal(t *testing.T) {
	_, err := newAnalyzer(t, DefaultOptions()).Run(context.Background(), invalidSnapshot())
	if !errors.Is(err, util.ErrConfigInvariant) {
		t.Fatalf("Run() error = %v, want ErrConfigInvariant", err)
	}
	if !strings.HasPrefix(err.Error(), PhaseCatalog+":") {
		t.Errorf("error %q should name the catalog phase", err)
	}
	var cie *util.ConfigInvariantError
	if !errors.As(err, &cie) || cie.Hostname != "C" || cie.VRF != "Vrf_BLUE" {
		t.Errorf("error context = %+v, want C/Vrf_BLUE", cie)
	}
}

func TestRun_SkipInvalidNodes(t *testing.T) {
	opts := DefaultOptions()
	opts.SkipInvalidNodes = true
	rep := run(t, opts, invalidSnapshot())

	if rep.Count(classify.Category(classify.StatusUniqueMatch)) != 2 {
		t.Errorf("UNIQUE_MATCH = %d, want 2", rep.Count(classify.Category(classify.StatusUniqueMatch)))
	}
	if _, ok := rep.Skipped["C"]; !ok {
		t.Errorf("Skipped = %v, want C", rep.Skipped)
	}
}

func TestRun_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := newAnalyzer(t, DefaultOptions()).Run(ctx, fabric())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if rep != nil {
		t.Error("cancelled run must not return a report")
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	opts := Options{
		Node1:     "(",
		Workers:   -1,
		Protocols: []session.Protocol{"rip"},
	}
	_, err := New(opts)
	if !errors.Is(err, util.ErrValidationFailed) {
		t.Fatalf("New() error = %v, want ErrValidationFailed", err)
	}
	var ve *util.ValidationError
	if !errors.As(err, &ve) || len(ve.Errors) != 3 {
		t.Errorf("validation errors = %v, want 3", err)
	}
}

func TestCompileNodeRegex(t *testing.T) {
	tests := []struct {
		expr  string
		host  string
		match bool
	}{
		{"", "leaf1", true},
		{".*", "leaf1", true},
		{"leaf.*", "leaf1", true},
		{"leaf", "leaf1", false},
		{"leaf1|spine1", "spine1", true},
		{"spine1", "xspine1", false},
	}
	for _, tt := range tests {
		re, err := compileNodeRegex(tt.expr)
		if err != nil {
			t.Fatalf("compileNodeRegex(%q) error = %v", tt.expr, err)
		}
		if got := re.MatchString(tt.host); got != tt.match {
			t.Errorf("compileNodeRegex(%q).MatchString(%q) = %v, want %v", tt.expr, tt.host, got, tt.match)
		}
	}
}
