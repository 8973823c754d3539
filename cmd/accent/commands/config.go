package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/accent/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage accent CLI configuration.

Configuration is stored in ~/.accent/accent/config.yaml.
Multiple contexts can be defined for different corpora, models or stores.

Settable keys: ` + fmt.Sprint(cli.Keys),
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add or replace a context",
	Long: `Add a context. Any --set key=value pairs are applied to it.

Examples:
  accent config add-context local --set corpus=data/samples --set storage.root=models
  accent config add-context prod --set storage.kind=s3 --set storage.bucket=voices --set storage.region=us-east-1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		pairs, _ := cmd.Flags().GetStringToString("set")
		ctx := &cli.Context{}
		for key, v := range pairs {
			if err := ctx.Set(key, v); err != nil {
				return err
			}
		}
		if err := cfg.AddContext(args[0], ctx); err != nil {
			return err
		}
		cli.PrintSuccess("Context '%s' added", args[0])
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a value in the current (or -c) context",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		name := contextName
		if name == "" {
			name = cfg.CurrentContext
		}
		if name == "" {
			return fmt.Errorf("no context selected. Use -c or 'accent config use-context'")
		}
		ctx, err := cfg.GetContext(name)
		if err != nil {
			return err
		}
		if err := ctx.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		cli.PrintSuccess("%s.%s = %s", name, args[0], args[1])
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Context '%s' deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the default context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context '%s'", args[0])
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:   "list-contexts",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		names := cfg.ListContexts()
		if len(names) == 0 {
			cli.PrintInfo("No contexts configured")
			return nil
		}
		for _, name := range names {
			marker := "  "
			if name == cfg.CurrentContext {
				marker = "* "
			}
			fmt.Printf("%s%s\n", marker, name)
		}
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the effective context (flags applied)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := getContext(cmd)
		if err != nil {
			return err
		}
		return outputResult(ctx)
	},
}

func init() {
	configAddContextCmd.Flags().StringToString("set", nil, "key=value settings (repeatable)")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
