package main

import (
	"fmt"

	"github.com/sleroq/nsx-to-markdown/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		written, err := config.WriteDefault(configFile)
		if err != nil {
			return err
		}
		if !written {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", configFile)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
