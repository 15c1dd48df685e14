package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/cuemby/scbackend/pkg/config"
	"github.com/cuemby/scbackend/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cfg is resolved once per invocation by the root PersistentPreRunE.
var cfg config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scbackend",
	Short: "scbackend - run projects and stream their events",
	Long: `scbackend stores runnable projects, runs instances of them on an
in-process engine, and relays the events they emit to WebSocket
subscribers.

The HTTP API (default :3030) manages projects and runners. The stream
endpoint (default :3031) broadcasts events.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		resolved, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = resolved

		log.Init(log.Config{
			Level:      log.ParseLevel(cfg.LogLevel),
			JSONOutput: cfg.LogJSON,
			Output:     os.Stderr,
		})
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"scbackend version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Config file (.yaml, .yml, .json or .toml)")
	flags.String("data-dir", "", "Data directory for the bolt store")
	flags.String("store", "", "Project store: bolt or memory")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.Bool("log-json", false, "Log as JSON instead of console output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(watchCmd)
}

// loadConfig layers defaults, the config file, the environment and finally
// any flags set on the command line.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	c := config.Default()

	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return c, fmt.Errorf("failed to load config: %w", err)
		}
		c = loaded
	}
	c.ApplyEnv(os.Getenv)

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		c.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("store") {
		c.Store, _ = flags.GetString("store")
	}
	if flags.Changed("log-level") {
		c.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		c.LogJSON, _ = flags.GetBool("log-json")
	}
	if f := flags.Lookup("api-addr"); f != nil && f.Changed {
		c.APIAddr = f.Value.String()
	}
	if f := flags.Lookup("stream-addr"); f != nil && f.Changed {
		c.StreamAddr = f.Value.String()
	}
	if f := flags.Lookup("republish"); f != nil && f.Changed {
		kinds, _ := flags.GetStringSlice("republish")
		c.RepublishKinds = kinds
	}
	if f := flags.Lookup("step-interval"); f != nil && f.Changed {
		c.StepInterval = strings.TrimSpace(f.Value.String())
	}

	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}
