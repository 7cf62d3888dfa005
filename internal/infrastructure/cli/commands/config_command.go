package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/sage-go/internal/app"
	configapp "github.com/doeshing/sage-go/internal/application/config"
	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/infrastructure/cli/helpers"
	configinfra "github.com/doeshing/sage-go/internal/infrastructure/config"
	"github.com/doeshing/sage-go/internal/ports"
)

// NewConfigCommand groups the config subcommands. Without a subcommand it
// prints the effective configuration.
func NewConfigCommand(container *app.Container) *cobra.Command {
	show := func(cmd *cobra.Command, _ []string) error {
		return printConfig(cmd.Context(), cmd.OutOrStdout(), container.ConfigProvider)
	}

	root := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit sage configuration",
		RunE:  show,
	}

	var key string
	get := &cobra.Command{
		Use:   "get [key]",
		Short: "Print one value by dotted key path (e.g. cache.ttl)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				key = args[0]
			}
			if key == "" {
				return errors.New(ErrKeyRequired)
			}
			return printConfigValue(cmd.Context(), cmd.OutOrStdout(), container.ConfigProvider, key)
		},
	}
	get.Flags().StringVar(&key, "key", "", "Dotted key path")

	var assumeYes bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default configuration, keeping a backup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !assumeYes && !helpers.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Overwrite the configuration with defaults?") {
				return nil
			}
			return resetConfig(cmd.OutOrStdout(), container)
		},
	}
	reset.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")

	root.AddCommand(
		&cobra.Command{Use: "show", Short: "Print the effective configuration as YAML", RunE: show},
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file location",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if container.ConfigProvider == nil {
					return errors.New(ErrConfigLoaderUnavailable)
				}
				fmt.Fprintln(cmd.OutOrStdout(), container.ConfigProvider.Path())
				return nil
			},
		},
		get,
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set one value; the value is parsed as YAML and the result validated",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return setConfigValue(cmd.Context(), container, args[0], strings.Join(args[1:], " "))
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Load and validate the configuration file",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return validateConfig(cmd.Context(), cmd.OutOrStdout(), container.ConfigProvider)
			},
		},
		reset,
		&cobra.Command{
			Use:   "diff",
			Short: "Show how the effective configuration differs from the defaults",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return diffConfig(cmd.Context(), cmd.OutOrStdout(), container.ConfigProvider)
			},
		},
	)
	return root
}

func loadConfig(ctx context.Context, provider ports.ConfigProvider) (domain.Config, error) {
	if provider == nil {
		return domain.Config{}, errors.New(ErrConfigLoaderUnavailable)
	}
	cfg, err := provider.Load(ctx)
	if err != nil {
		return domain.Config{}, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

func printConfig(ctx context.Context, out io.Writer, provider ports.ConfigProvider) error {
	cfg, err := loadConfig(ctx, provider)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func printConfigValue(ctx context.Context, out io.Writer, provider ports.ConfigProvider, keyPath string) error {
	cfg, err := loadConfig(ctx, provider)
	if err != nil {
		return err
	}
	tree, err := configTree(cfg)
	if err != nil {
		return err
	}
	value, ok := helpers.LookupPath(tree, strings.Split(keyPath, "."))
	if !ok {
		return fmt.Errorf("no configuration key %q", keyPath)
	}
	data, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func setConfigValue(ctx context.Context, container *app.Container, keyPath, raw string) error {
	cfg, err := loadConfig(ctx, container.ConfigProvider)
	if err != nil {
		return err
	}
	tree, err := configTree(cfg)
	if err != nil {
		return err
	}
	if !helpers.AssignPath(tree, strings.Split(keyPath, "."), helpers.ParseYAMLValue(raw)) {
		return fmt.Errorf("cannot set configuration key %q", keyPath)
	}

	// Round-trip through the strict parser so misspelled keys are rejected.
	data, err := yaml.Marshal(tree)
	if err != nil {
		return err
	}
	updated, err := configinfra.Parse(data)
	if err != nil {
		return fmt.Errorf("set %s: %w", keyPath, err)
	}
	return helpers.SaveConfigWithValidation(container, updated)
}

func validateConfig(ctx context.Context, out io.Writer, provider ports.ConfigProvider) error {
	cfg, err := loadConfig(ctx, provider)
	if err == nil {
		err = configapp.Validate(cfg)
	}
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	fmt.Fprintf(out, "%s (%d providers, %d enabled)\n", MsgConfigurationValid, len(cfg.Providers), len(cfg.EnabledProviders()))
	return nil
}

func resetConfig(out io.Writer, container *app.Container) error {
	loader, err := helpers.GetConfigLoader(container)
	if err != nil {
		return err
	}
	backup, err := loader.Backup()
	if err != nil {
		return fmt.Errorf("back up configuration: %w", err)
	}
	if _, err := loader.Reset(); err != nil {
		return fmt.Errorf("reset configuration: %w", err)
	}
	fmt.Fprintf(out, "Restored defaults in %s (backup: %s)\n", loader.Path(), backup)
	return nil
}

func diffConfig(ctx context.Context, out io.Writer, provider ports.ConfigProvider) error {
	cfg, err := loadConfig(ctx, provider)
	if err != nil {
		return err
	}
	if diff := cmp.Diff(configinfra.Default(), cfg); diff != "" {
		fmt.Fprintln(out, diff)
		return nil
	}
	fmt.Fprintln(out, MsgNoDifferencesFromDefault)
	return nil
}

// configTree renders cfg in its YAML map form for key-path access.
func configTree(cfg domain.Config) (map[string]interface{}, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	tree := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}
