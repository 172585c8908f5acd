//go:build integration

package testutil

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

// redisAddrEnv names the test Redis when it does not run in the
// sessioncheck-test-redis container
const redisAddrEnv = "SESSIONCHECK_TEST_REDIS_ADDR"

// ConfigDB is CONFIG_DB content: table, key, field, value
type ConfigDB map[string]map[string]map[string]string

// Context returns a context that ends with the test, or after 30s
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ConfigDBServer loads tables into database db of the test Redis, replacing
// what was there, and returns the Redis address. The database is emptied
// again when the test ends. Without a reachable Redis the test is skipped.
func ConfigDBServer(t *testing.T, db int, tables ConfigDB) string {
	t.Helper()
	addr := redisAddr()
	if addr == "" {
		t.Skipf("test Redis not available: set %s", redisAddrEnv)
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	t.Cleanup(func() { client.Close() })
	ctx := Context(t)

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("test Redis not reachable at %s: %v", addr, err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flushing db %d: %v", db, err)
	}
	t.Cleanup(func() { client.FlushDB(context.Background()) })

	_, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for table, entries := range tables {
			for key, fields := range entries {
				if len(fields) == 0 {
					// SONiC stores field-less entries with a NULL placeholder
					fields = map[string]string{"NULL": "NULL"}
				}
				args := make([]interface{}, 0, 2*len(fields))
				for f, v := range fields {
					args = append(args, f, v)
				}
				pipe.HSet(ctx, table+"|"+key, args...)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seeding CONFIG_DB: %v", err)
	}
	return addr
}

func redisAddr() string {
	if addr := os.Getenv(redisAddrEnv); addr != "" {
		return addr
	}
	out, err := exec.Command("docker", "inspect",
		"--format", "{{range .NetworkSettings.Networks}}{{.IPAddress}}{{end}}",
		"sessioncheck-test-redis").Output()
	if ip := strings.TrimSpace(string(out)); err == nil && ip != "" {
		return ip + ":6379"
	}
	return ""
}
