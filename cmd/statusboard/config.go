package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbvcapital/statusboard/internal/config"
	"github.com/dbvcapital/statusboard/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "advanced",
	Short:   "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("path")
		force, _ := cmd.Flags().GetBool("force")
		if path == "" {
			path = config.FileName
		}
		if err := config.WriteDefault(path, force); err != nil {
			fatalf("%v", err)
		}
		ui.Stdout().Success("Wrote %s", path)
		fmt.Printf("Set %s and the database ids there or in the environment.\n", config.EnvNotionToken)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	Run: func(cmd *cobra.Command, args []string) {
		if f := cfg.File(); f != "" {
			fmt.Printf("# from %s\n", f)
		} else {
			fmt.Println("# no config file; defaults and environment only")
		}
		if err := config.Encode(os.Stdout, cfg.Redacted(), false); err != nil {
			fatalf("%v", err)
		}
		if err := cfg.Validate(); err != nil {
			ui.NewPrinter(os.Stderr).Warning("%v", err)
		}
	},
}

func init() {
	configInitCmd.Flags().String("path", "", "Where to write the file (default: ./statusboard.yaml)")
	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
