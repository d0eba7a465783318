package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/spinlock99/bootleg/internal/config"
	"github.com/spinlock99/bootleg/internal/dispatch"
	"github.com/spinlock99/bootleg/internal/engine"
	"github.com/spinlock99/bootleg/internal/manifest"
	"github.com/spinlock99/bootleg/internal/store"
	"github.com/spinlock99/bootleg/internal/transport"
	"github.com/spinlock99/bootleg/internal/transport/local"
	"github.com/spinlock99/bootleg/internal/transport/sshx"
)

var rootCmd = &cobra.Command{
	Use:          "bootleg",
	Short:        "Bootleg - role-scoped deployment orchestration",
	Long:         `Bootleg defines named groups of hosts (roles), registers ordered tasks with before/after hooks, and runs shell commands and file transfers against those hosts in lock-step, failing fast on the first non-zero exit.`,
	SilenceUsage: true,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	manifestPath string
	configPath   string
	useLocal     bool
	noHistory    bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "file", "f", "deploy.yml", "Deploy manifest path")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	rootCmd.PersistentFlags().BoolVar(&useLocal, "local", false, "Run commands on the local machine instead of over SSH")
	rootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "Disable the run history database")

	rootCmd.AddCommand(runCmd, execCmd, uploadCmd, downloadCmd, rolesCmd, tasksCmd, historyCmd)
}

// newEngine assembles an engine from flags. withManifest loads and applies
// the deploy manifest; commands that only read history skip it.
func newEngine(withManifest bool) (*engine.Engine, func(), error) {
	cfg := config.New()
	if err := cfg.Load(configPath); err != nil {
		return nil, nil, err
	}

	var tr transport.Transport
	if useLocal {
		tr = local.New()
	} else {
		tr = sshx.New(sshx.Config{
			User:         cfg.GetString("ssh.user", ""),
			Port:         cfg.GetInt("ssh.port", 22),
			IdentityFile: cfg.GetString("ssh.identity", ""),
		})
	}

	var hist *store.Store
	cleanup := func() {}
	if !noHistory {
		h, err := store.New(cfg.GetString("history.path", ""))
		if err != nil {
			log.Printf("history disabled: %v", err)
		} else {
			hist = h
			cleanup = func() { h.Close() }
		}
	}

	eng := engine.New(engine.Options{
		Transport: tr,
		Config:    cfg,
		History:   hist,
		Recorders: []dispatch.Recorder{consoleReporter{}},
	})

	if withManifest {
		f, err := manifest.Load(manifestPath)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := manifest.Apply(f, eng); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return eng, cleanup, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render(err.Error()))
		os.Exit(1)
	}
}
