package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/cmd/bd/doctor"
	"github.com/fwindolf/beads-rs-sub001/internal/config"
	"github.com/fwindolf/beads-rs-sub001/internal/configfile"
	"github.com/fwindolf/beads-rs-sub001/internal/storage/sqlite"
)

var configCmd = &cobra.Command{
	Use:         "config",
	GroupID:     GroupSetup,
	Short:       "Manage configuration settings",
	Annotations: map[string]string{annotationNoStore: "true"},
	Long: `Manage configuration settings.

Startup settings (json, db, actor, lock-timeout, readonly, id.*) live in
.beads/config.yaml because they are read before the database is opened.
Everything else is stored in the database config table.

Common database keys:
  issue_prefix       Prefix for generated issue IDs
  allowed_prefixes   Comma-separated extra prefixes accepted on import
  status.custom      Comma-separated custom statuses
  types.custom       Comma-separated custom issue types

Examples:
  bd config set status.custom "awaiting_review,awaiting_testing"
  bd config set lock-timeout 10s
  bd config get issue_prefix
  bd config list
  bd config unset status.custom`,
}

// ensureStore opens the database for subcommands of store-less parents.
func ensureStore() {
	if store != nil {
		return
	}
	if err := openStore(rootCtx); err != nil {
		if errors.Is(err, configfile.ErrNoBeadsDir) || errors.Is(err, os.ErrNotExist) {
			FatalErrorWithHint(err.Error(), "run 'bd init' to create a database")
		}
		FatalErrorRespectJSON("%v", err)
	}
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		key, value := args[0], args[1]

		if config.IsYamlOnlyKey(key) {
			if err := config.SetYamlConfig(key, value); err != nil {
				FatalError("setting config: %v", err)
			}
			if jsonOutput {
				outputJSON(map[string]interface{}{"key": key, "value": value, "location": "config.yaml"})
				return
			}
			fmt.Printf("Set %s = %s (in config.yaml)\n", key, value)
			return
		}

		ensureStore()
		if key == sqlite.IssuePrefixConfigKey {
			value = strings.TrimSuffix(value, "-")
		}
		if err := store.SetConfig(rootCtx, key, value); err != nil {
			FatalErrorRespectJSON("setting config: %v", err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"key": key, "value": value})
			return
		}
		fmt.Printf("Set %s = %s\n", key, value)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		key := args[0]

		if config.IsYamlOnlyKey(key) {
			value := config.GetYamlConfig(key)
			if jsonOutput {
				outputJSON(map[string]interface{}{"key": key, "value": value, "location": "config.yaml"})
				return
			}
			if value == "" {
				fmt.Printf("%s (not set in config.yaml)\n", key)
				return
			}
			fmt.Println(value)
			return
		}

		ensureStore()
		value, err := store.GetConfig(rootCtx, key)
		if err != nil {
			FatalErrorRespectJSON("getting config: %v", err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"key": key, "value": value})
			return
		}
		if value == "" {
			fmt.Printf("%s (not set)\n", key)
			return
		}
		fmt.Println(value)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		ensureStore()
		cfg, err := store.GetAllConfig(rootCtx)
		if err != nil {
			FatalErrorRespectJSON("listing config: %v", err)
		}
		if jsonOutput {
			outputJSON(cfg)
			return
		}
		if len(cfg) == 0 {
			fmt.Println("No configuration set")
			return
		}

		keys := make([]string, 0, len(cfg))
		for k := range cfg {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("\nConfiguration:")
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", k, cfg[k])
		}
		showConfigYAMLOverrides()
	},
}

// showConfigYAMLOverrides lists startup settings that come from config.yaml
// or the environment rather than the database.
func showConfigYAMLOverrides() {
	var overrides []string
	keys := make([]string, 0, len(config.YamlOnlyKeys))
	for k := range config.YamlOnlyKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		source := config.GetValueSource(key)
		if source == config.SourceDefault {
			continue
		}
		overrides = append(overrides, fmt.Sprintf("  %s = %s (from %s)", key, config.GetString(key), source))
	}
	if len(overrides) == 0 {
		return
	}
	fmt.Println("\nStartup settings (config.yaml / environment):")
	for _, o := range overrides {
		fmt.Println(o)
	}
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Delete a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		key := args[0]
		if config.IsYamlOnlyKey(key) {
			FatalError("%s lives in config.yaml; edit or comment it out there", key)
		}
		ensureStore()
		if err := store.DeleteConfig(rootCtx, key); err != nil {
			FatalErrorRespectJSON("deleting config: %v", err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"key": key})
			return
		}
		fmt.Printf("Unset %s\n", key)
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config.yaml, metadata.json and stored custom values",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		dir, err := resolveBeadsDir()
		if err != nil {
			FatalErrorWithHint(err.Error(), "run 'bd init' to create a workspace")
		}
		check := doctor.CheckConfigValues(dir)
		var problems []string
		if check.Detail != "" {
			problems = strings.Split(check.Detail, "\n")
		}

		if jsonOutput {
			if problems == nil {
				problems = []string{}
			}
			outputJSON(map[string]interface{}{"valid": len(problems) == 0, "issues": problems})
			return
		}
		if len(problems) == 0 {
			fmt.Println("✓ All configuration is valid")
			return
		}
		fmt.Println("Configuration validation found issues:")
		for _, p := range problems {
			fmt.Printf("  • %s\n", p)
		}
		fmt.Println("\nRun 'bd config set <key> <value>' to fix configuration issues.")
		closeStore()
		os.Exit(1)
	},
}

func init() {
	configCmd.AddCommand(configSetCmd, configGetCmd, configListCmd, configUnsetCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
