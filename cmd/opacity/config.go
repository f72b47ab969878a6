package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mavahu/opacity-go/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize the settings file",
	}
	cmd.AddCommand(newConfigShowCmd(a), newConfigInitCmd(a))
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigPath(a.cfg.DataDir)
			if !a.configExists() {
				path += " (not written, showing defaults)"
			}
			a.printf(cmd, "%s\n\n", dimText.Sprint("# "+path))
			fmt.Fprint(cmd.OutOrStdout(), a.cfg.String())
			return nil
		},
	}
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective settings to the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigPath(a.cfg.DataDir)
			if a.configExists() && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveConfig(path, a.cfg); err != nil {
				return err
			}
			a.printf(cmd, "%s wrote %s\n", successText.Sprint("✓"), pathText.Sprint(path))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing settings file")
	return cmd
}
