package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/newtron-network/sessioncheck/pkg/cli"
	"github.com/newtron-network/sessioncheck/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.sessioncheck/settings.json.

Settings provide defaults for check and collect:
  - snapshot:   Snapshot file used when check gets no argument
  - question:   Question file used when -q is not specified
  - workers:    Default parallelism
  - redis_port: CONFIG_DB port on devices (default 6379)
  - audit_log:  Run log appended to by check and read by history

Examples:
  sessioncheck settings show
  sessioncheck settings set snapshot /var/lib/sessioncheck/dc1.yaml
  sessioncheck settings set workers 8
  sessioncheck settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.LoadFrom(settingsPath)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Settings file: %s\n\n", settingsPath)

		t := cli.NewTable("SETTING", "VALUE").WithWriter(out)
		for _, name := range settingNames {
			value, _ := getSetting(s, name)
			if value == "" {
				value = cli.Dim("(not set)")
			}
			t.Row(name, value)
		}
		t.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.LoadFrom(settingsPath)
		if err != nil {
			s = &settings.Settings{}
		}
		if err := setSetting(s, args[0], args[1]); err != nil {
			return err
		}
		if err := s.SaveTo(settingsPath); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s set to: %s\n", args[0], args[1])
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <setting>",
	Short: "Get a setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.LoadFrom(settingsPath)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		value, err := getSetting(s, args[0])
		if err != nil {
			return err
		}
		if value == "" {
			value = "(not set)"
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &settings.Settings{}
		if err := s.SaveTo(settingsPath); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Settings cleared.")
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsGetCmd, settingsClearCmd)
}

var settingNames = []string{"snapshot", "question", "workers", "redis_port", "audit_log"}

func getSetting(s *settings.Settings, name string) (string, error) {
	switch name {
	case "snapshot":
		return s.DefaultSnapshot, nil
	case "question":
		return s.DefaultQuestion, nil
	case "workers":
		return intSetting(s.Workers), nil
	case "redis_port":
		return intSetting(s.RedisPort), nil
	case "audit_log":
		return s.AuditLog, nil
	}
	return "", unknownSetting(name)
}

func setSetting(s *settings.Settings, name, value string) error {
	switch name {
	case "snapshot":
		s.DefaultSnapshot = value
	case "question":
		s.DefaultQuestion = value
	case "audit_log":
		s.AuditLog = value
	case "workers", "redis_port":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative integer, got %q", name, value)
		}
		if name == "workers" {
			s.Workers = n
		} else {
			s.RedisPort = n
		}
	default:
		return unknownSetting(name)
	}
	return nil
}

func intSetting(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func unknownSetting(name string) error {
	return fmt.Errorf("unknown setting: %s (valid: snapshot, question, workers, redis_port, audit_log)", name)
}
