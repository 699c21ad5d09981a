package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrkflw/wrkflw/internal/cliui"
	"github.com/wrkflw/wrkflw/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage wrkflw's user-level configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the resolved configuration",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the configuration file path",
	RunE:  runConfigPath,
}

var configSetRuntimeCmd = &cobra.Command{
	Use:   "set-runtime <docker|podman|emulation>",
	Short: "Persist the default container runtime",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigSetRuntime,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetRuntimeCmd)
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fatalf("loading config: %w", err)
	}
	fmt.Printf("%-22s %s\n", cliui.MutedStyle.Render("runtime"), cfg.Runtime)
	fmt.Printf("%-22s %d\n", cliui.MutedStyle.Render("workers"), cfg.Workers)
	fmt.Printf("%-22s %v\n", cliui.MutedStyle.Render("preserve-on-failure"), cfg.PreserveOnFailure)
	fmt.Printf("%-22s %d\n", cliui.MutedStyle.Render("max-combinations"), cfg.MaxCombinations)
	fmt.Printf("%-22s %s\n", cliui.MutedStyle.Render("cache-dir"), cfg.CacheDir)
	return nil
}

func runConfigPath(_ *cobra.Command, _ []string) error {
	path, err := config.Path()
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runConfigSetRuntime(_ *cobra.Command, args []string) error {
	runtime := args[0]
	switch runtime {
	case "docker", "podman", "emulation":
	default:
		return fatalf("unknown runtime %q: want docker, podman, or emulation", runtime)
	}
	if err := config.Save(config.FileConfig{Runtime: runtime}); err != nil {
		return fatalf("saving config: %w", err)
	}
	fmt.Printf("%s runtime set to %s\n", cliui.SuccessStyle.Render("✓"), runtime)
	return nil
}
