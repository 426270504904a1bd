package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grithq/grit/pkg/server"
)

// serveConfig is the TOML shape of a server configuration file.
type serveConfig struct {
	Listen   string `toml:"listen"`
	Root     string `toml:"root"`
	LogLevel string `toml:"log_level"`
}

func defaultServeConfig() serveConfig {
	return serveConfig{
		Listen:   ":8470",
		Root:     ".",
		LogLevel: "info",
	}
}

func newServeCmd() *cobra.Command {
	var configPath string
	var listen string
	var root string
	var logLevel string
	var initRepos []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host repositories over smart HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := defaultServeConfig()
			if configPath != "" {
				if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
					return fmt.Errorf("load config %s: %w", configPath, err)
				}
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("root") {
				cfg.Root = root
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}

			level, err := logrus.ParseLevel(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
			}
			logger := logrus.New()
			logger.SetLevel(level)

			srv, err := server.NewFilesystem(cfg.Root, logger)
			if err != nil {
				return err
			}
			for _, name := range initRepos {
				if err := srv.InitRepo(name, ""); err != nil {
					return fmt.Errorf("init repository %q: %w", name, err)
				}
				logger.WithField("repo", name).Info("initialized repository")
			}

			httpSrv := &http.Server{
				Addr:              cfg.Listen,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}
			logger.WithFields(logrus.Fields{
				"listen": cfg.Listen,
				"root":   cfg.Root,
			}).Info("serving repositories")
			return httpSrv.ListenAndServe()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	cmd.Flags().StringVar(&listen, "listen", ":8470", "listen address")
	cmd.Flags().StringVar(&root, "root", ".", "directory holding hosted repositories")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "logrus level (debug, info, warn, error)")
	cmd.Flags().StringArrayVar(&initRepos, "init", nil, "create an empty hosted repository at startup (repeatable)")
	return cmd
}
