package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/doppel/internal/config"
	"github.com/jackzampolin/doppel/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the doppel home directory and database",
	Long: `Init creates the home directory layout, writes a commented default
config.yaml, and initializes the database schema.

Safe to re-run: existing configuration and data are left alone.

Examples:
  doppel init                      # Set up ~/.doppel
  doppel init --home /data/doppel  # Set up a custom location`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}

		if err := e.home.EnsureExists(); err != nil {
			return err
		}
		e.log.Info("home directory ready", "path", e.home.Path())

		if e.home.ConfigExists() {
			e.log.Info("config already exists, leaving it alone", "path", e.home.ConfigPath())
		} else {
			if err := config.WriteDefault(e.home.ConfigPath()); err != nil {
				return err
			}
			e.log.Info("wrote default config", "path", e.home.ConfigPath())
		}

		st, err := store.Open(e.home.DatabasePath())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.InitSchema(cmd.Context()); err != nil {
			return err
		}
		e.log.Info("database schema ready", "path", e.home.DatabasePath())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
