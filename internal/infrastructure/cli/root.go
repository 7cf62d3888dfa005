package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/doeshing/sage-go/internal/app"
	"github.com/doeshing/sage-go/internal/infrastructure/cli/commands"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// Execute builds the command tree, runs it and releases the container
// whether or not the command failed.
func Execute(ctx context.Context, opts Options, args []string) error {
	root, closeContainer, err := NewRootCmd(ctx, opts)
	if err != nil {
		return err
	}
	defer closeContainer()

	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCmd wires the container into the cobra tree. The returned func
// closes the container.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, func() error, error) {
	container, err := app.BuildContainer(ctx, app.Options{Verbose: opts.Verbose, ConfigPath: opts.ConfigPath})
	if err != nil {
		return nil, nil, err
	}

	root := &cobra.Command{
		Use:   "sage",
		Short: "Ask several AI tools the same question and merge their answers",
		Long: "sage runs every configured AI command-line tool in parallel on one prompt " +
			"and folds the answers into a scored consensus with a single recommendation.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newConsultCommand(container),
		commands.NewProvidersCommand(container),
		commands.NewCacheCommand(container),
		commands.NewConfigCommand(container),
		commands.NewDoctorCommand(container),
		commands.NewServeCommand(container),
		commands.NewMCPCommand(container),
		commands.NewVersionCommand(),
	)
	return root, container.Close, nil
}
