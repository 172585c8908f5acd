package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/sessioncheck/pkg/cli"
	"github.com/newtron-network/sessioncheck/pkg/snapshot"
)

var (
	collectOutput   string
	collectName     string
	collectUser     string
	collectPassword string
	collectDirect   bool
	collectWorkers  int
)

// passwordEnv supplies the SSH password for unattended runs
const passwordEnv = "SESSIONCHECK_SSH_PASSWORD"

var collectCmd = &cobra.Command{
	Use:   "collect <name=host>...",
	Short: "Build a snapshot from live SONiC devices",
	Long: `Read CONFIG_DB from SONiC devices and write a snapshot file.

Each target is name=host (or just host, used as the name). CONFIG_DB is
reached through an SSH tunnel to the device; with --direct the host is a
Redis address (host:port) reached without SSH.

The SSH password is read from --password, then $` + passwordEnv + `, then
prompted for.

Examples:
  sessioncheck collect -o dc1.yaml leaf1=10.0.0.11 leaf2=10.0.0.12 spine1=10.0.0.1
  sessioncheck collect --direct -o lab.yaml leaf1=127.0.0.1:6379`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := parseTargets(args, collectDirect)
		if err != nil {
			return err
		}
		if !collectDirect {
			password, err := sshPassword()
			if err != nil {
				return err
			}
			for i := range targets {
				targets[i].User = collectUser
				targets[i].Password = password
			}
		}

		name := collectName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(collectOutput), filepath.Ext(collectOutput))
		}
		snap, err := snapshot.Collect(cmd.Context(), name, targets, snapshot.CollectOptions{
			RedisPort: userSettings.GetRedisPort(),
			Workers:   collectWorkers,
		})
		if err != nil {
			return err
		}

		if err := snapshot.WriteFile(collectOutput, snap); err != nil {
			return fmt.Errorf("writing %s: %w", collectOutput, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d node(s) written to %s\n", cli.Green("Collected"), len(snap.Nodes), collectOutput)
		return nil
	},
}

func init() {
	f := collectCmd.Flags()
	f.StringVarP(&collectOutput, "output", "o", "snapshot.yaml", "Snapshot file to write")
	f.StringVar(&collectName, "name", "", "Snapshot name (default: output file name)")
	f.StringVarP(&collectUser, "user", "u", "admin", "SSH user")
	f.StringVarP(&collectPassword, "password", "p", "", "SSH password")
	f.BoolVar(&collectDirect, "direct", false, "Connect to Redis directly instead of through SSH")
	f.IntVarP(&collectWorkers, "workers", "w", 0, "Devices read in parallel (0 = number of CPUs)")
}

// parseTargets turns name=host arguments into collection targets
func parseTargets(args []string, direct bool) ([]snapshot.Target, error) {
	seen := make(map[string]bool)
	targets := make([]snapshot.Target, 0, len(args))
	for _, arg := range args {
		name, host, ok := strings.Cut(arg, "=")
		if !ok {
			host = name
		}
		if name == "" || host == "" {
			return nil, fmt.Errorf("invalid target %q: expected name=host", arg)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate target %q", name)
		}
		seen[name] = true

		t := snapshot.Target{Hostname: name}
		if direct {
			t.RedisAddr = host
		} else {
			t.Host = host
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func sshPassword() (string, error) {
	if collectPassword != "" {
		return collectPassword, nil
	}
	if p := os.Getenv(passwordEnv); p != "" {
		return p, nil
	}
	p, err := cli.ReadPassword("SSH password: ")
	if errors.Is(err, cli.ErrNotTerminal) {
		return "", fmt.Errorf("SSH password required: use --password or $%s", passwordEnv)
	}
	return p, err
}
