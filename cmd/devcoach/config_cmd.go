package main

import (
	"fmt"
	"os"

	"github.com/cleaver/open-dev-coach/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write settings",
	Long:  `Settings live in ~/.devcoach/config.yaml and can be overridden with DEVCOACH_* environment variables.`,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a setting",
	Example: `  devcoach config set timezone Europe/Berlin
  devcoach config set digest.time 17:30`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configShowCmd, configInitCmd)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	value, ok := cfg.Get(args[0])
	if !ok {
		return fmt.Errorf("%s is not set", args[0])
	}
	fmt.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Set(args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Set %s in %s\n", args[0], cfg.Path())
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	out, err := cfg.YAML()
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n", cfg.Path())
	os.Stdout.Write(out)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := config.WriteDefault(configPath); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", configPath)
	return nil
}
