package snapshot

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sourcegraph/conc/pool"

	"github.com/newtron-network/sessioncheck/pkg/model"
	"github.com/newtron-network/sessioncheck/pkg/util"
)

// Target is one device to collect from. With RedisAddr set CONFIG_DB is
// read directly, otherwise through an SSH tunnel to Host.
type Target struct {
	Hostname  string
	Host      string
	RedisAddr string
	User      string
	Password  string
}

// CollectOptions tune a collection run
type CollectOptions struct {
	// RedisPort is the CONFIG_DB port on the device (0 = 6379)
	RedisPort int

	// Workers bounds the number of devices read concurrently (0 = GOMAXPROCS)
	Workers int
}

// Collect reads every target and assembles a snapshot. The first failing
// device cancels the rest.
func Collect(ctx context.Context, name string, targets []Target, opts CollectOptions) (*model.Snapshot, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	port := opts.RedisPort
	if port <= 0 {
		port = DefaultRedisPort
	}

	p := pool.NewWithResults[*model.Node]().
		WithContext(ctx).
		WithMaxGoroutines(workers).
		WithFirstError().
		WithCancelOnError()
	for _, target := range targets {
		p.Go(func(ctx context.Context) (*model.Node, error) {
			return collectOne(ctx, target, port)
		})
	}
	nodes, err := p.Wait()
	if err != nil {
		return nil, err
	}

	snap := &model.Snapshot{Name: name, Nodes: make(map[string]*model.Node)}
	for _, node := range nodes {
		if _, dup := snap.Nodes[node.Hostname]; dup {
			return nil, &util.SourceError{Op: "collect", Device: node.Hostname, Err: fmt.Errorf("duplicate hostname")}
		}
		snap.AddNode(node)
	}
	return snap, nil
}

func collectOne(ctx context.Context, target Target, port int) (*model.Node, error) {
	log := util.WithNode(target.Hostname)
	addr := target.RedisAddr
	if addr == "" {
		log.Debugf("Opening SSH tunnel to %s", target.Host)
		tunnel, err := NewSSHTunnel(ctx, target.Host, target.User, target.Password, port)
		if err != nil {
			return nil, &util.SourceError{Op: "connect", Device: target.Hostname, Err: err}
		}
		defer tunnel.Close()
		addr = tunnel.LocalAddr()
	}

	client := NewConfigDBClient(addr)
	defer client.Close()
	if err := client.Connect(ctx); err != nil {
		return nil, &util.SourceError{Op: "connect", Device: target.Hostname, Err: err}
	}

	node, err := client.ReadNode(ctx, target.Hostname)
	if err != nil {
		return nil, err
	}
	log.Debugf("Collected %d VRFs", len(node.VRFs))
	return node, nil
}
