package main

import (
	"os"

	"github.com/chazu/indy/config"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	"go.trai.ch/zerr"
)

// CLI holds the command tree and the flags shared by subcommands.
type CLI struct {
	rootCmd    *cobra.Command
	configPath string
	verbose    int
}

func newCLI() *CLI {
	c := &CLI{}
	c.rootCmd = &cobra.Command{
		Use:           "indy",
		Short:         "Call-site linkage and inline caching runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to indy.toml (default: search upward from the working directory)")
	c.rootCmd.PersistentFlags().CountVarP(&c.verbose, "verbose", "v", "Increase log verbosity (repeatable)")

	c.rootCmd.AddCommand(c.newRunCmd())
	c.rootCmd.AddCommand(c.newConfigCmd())
	return c
}

// loadConfig reads the configuration named by --config, or the nearest
// indy.toml, and configures logging from it.
func (c *CLI) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.LoadFile(c.configPath)
	} else {
		var wd string
		wd, err = os.Getwd()
		if err != nil {
			return nil, zerr.Wrap(err, "cannot determine working directory")
		}
		cfg, err = config.FindAndLoad(wd)
	}
	if err != nil {
		return nil, err
	}
	verbosity := cfg.Log.Verbosity + c.verbose
	commonlog.Configure(verbosity, cfg.LogFile())
	return cfg, nil
}
