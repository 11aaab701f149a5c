package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/example/focus-timer/internal/agent"
	"github.com/example/focus-timer/internal/config"
	"github.com/example/focus-timer/internal/logging"
	"github.com/example/focus-timer/internal/timerapi"
)

var Version = "dev"

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries the state shared by every subcommand once configuration has
// been loaded.
type cli struct {
	viper      *viper.Viper
	configPath string
	in         io.Reader

	cfg      config.AgentConfig
	logger   *slog.Logger
	deviceID string
	client   *timerapi.Client
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	c := &cli{viper: config.NewAgentViper(), in: in}

	rootCmd := &cobra.Command{
		Use:           "focusctl",
		Short:         "Focus timer client",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to focusctl.yaml")
	flags.String("server-url", "", "focus timer API base URL")
	flags.String("api-key", "", "API key issued by focusd issue-key")
	flags.String("state-dir", "", "directory holding the device state file")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	for key, flag := range map[string]string{
		"server_url": "server-url",
		"api_key":    "api-key",
		"state_dir":  "state-dir",
		"log_level":  "log-level",
	} {
		_ = c.viper.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(runCmd(c))
	rootCmd.AddCommand(statusCmd(c))
	rootCmd.AddCommand(pauseCmd(c))
	rootCmd.AddCommand(resumeCmd(c))
	rootCmd.AddCommand(stopCmd(c))
	rootCmd.AddCommand(activityCmd(c))
	rootCmd.AddCommand(deviceCmd(c))
	return rootCmd
}

// setup loads configuration, the device identifier and the API client.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadAgent(c.viper, c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("設定値が不正です: log_level")
	}
	c.logger = logging.New(cmd.ErrOrStderr(), level)

	deviceID, err := agent.NewDeviceStore(cfg.StateDir, nil, nil).LoadOrCreate()
	if err != nil {
		return fmt.Errorf("load device id: %w", err)
	}
	c.deviceID = deviceID

	client, err := timerapi.NewClient(cfg.ServerURL, cfg.APIKey,
		timerapi.WithDeviceID(deviceID),
		timerapi.WithUserAgent("focusctl/"+Version),
	)
	if err != nil {
		return err
	}
	c.client = client
	return nil
}

func (c *cli) agentOptions(onTick func(agent.State)) agent.Options {
	return agent.Options{
		DeviceID:         c.deviceID,
		SyncInterval:     c.cfg.SyncInterval,
		LivenessInterval: c.cfg.LivenessInterval,
		SaveTimeout:      c.cfg.SaveTimeout,
		DebounceFloor:    c.cfg.DebounceFloor,
		OnTick:           onTick,
		Logger:           c.logger,
	}
}
