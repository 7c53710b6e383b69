package main

import (
	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/threadpager/internal/appconfig"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the threadpager config file",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var path string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := appconfig.WriteDefault(path, overwrite)
			if err != nil {
				return err
			}
			pslog.Ctx(cmd.Context()).Info("config wrote", "path", written)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&overwrite, "force", false, "overwrite an existing config")
	return cmd
}
