package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newtron-network/sessioncheck/pkg/util"
)

func TestCollect_NoTargets(t *testing.T) {
	snap, err := Collect(context.Background(), "empty", nil, CollectOptions{})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if snap.Name != "empty" || len(snap.Nodes) != 0 {
		t.Errorf("Collect() = %+v, want empty snapshot", snap)
	}
}

func TestCollect_UnreachableDevice(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Port 1 on loopback refuses connections
	targets := []Target{{Hostname: "leaf1", RedisAddr: "127.0.0.1:1"}}
	_, err := Collect(ctx, "lab", targets, CollectOptions{Workers: 1})
	if err == nil {
		t.Fatal("Collect() should fail for an unreachable device")
	}
	if !errors.Is(err, util.ErrSnapshotSource) {
		t.Errorf("error = %v, want ErrSnapshotSource", err)
	}
	var se *util.SourceError
	if !errors.As(err, &se) || se.Device != "leaf1" || se.Op != "connect" {
		t.Errorf("error = %#v, want connect failure for leaf1", err)
	}
}
