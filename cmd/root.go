// Package cmd implements containerctl, the command-line front end of the
// container kernel.
//
// Configuration precedence, highest first:
//  1. command-line flags (--manifest, --port, ...)
//  2. environment variables (CONTAINER_MANIFEST, APP_PORT, ...)
//  3. the file named by CONFIG_FILE
//  4. built-in defaults
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/km-arc/go-container/framework/app"
	"github.com/km-arc/go-container/framework/config"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	envFiles []string
	flags    *pflag.FlagSet
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "containerctl",
		Short: "Inspect and serve a dependency injection container",
		Long: `containerctl boots the container kernel, applies the service manifest
and lets you inspect the result or serve the inspection API over HTTP.

Examples:
  containerctl keys --manifest services.yaml
  containerctl get app.name --manifest services.yaml -o json
  containerctl tagged reports --manifest services.yaml
  containerctl validate services.yaml
  containerctl serve --manifest services.yaml --watch`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	pf.StringP("manifest", "m", "", "service manifest to apply (CONTAINER_MANIFEST)")
	pf.StringP("log-level", "l", "", "log level: debug, info, warn, error (LOG_LEVEL)")
	opts.flags = pf

	root.AddCommand(
		newKeysCommand(opts),
		newGetCommand(opts),
		newTaggedCommand(opts),
		newValidateCommand(),
		newServeCommand(opts),
	)
	return root
}

// viper loads the configuration and binds the persistent flags plus any
// extra bindings (viper key → flag) of the running subcommand.
func (o *rootOptions) viper(cmd *cobra.Command, extra map[string]string) (*viper.Viper, error) {
	v, err := config.NewViper(o.envFiles...)
	if err != nil {
		return nil, err
	}
	bindings := map[string]*pflag.Flag{
		"container.manifest": o.flags.Lookup("manifest"),
		"log.level":          o.flags.Lookup("log-level"),
	}
	for key, name := range extra {
		bindings[key] = cmd.Flags().Lookup(name)
	}
	for key, flag := range bindings {
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("binding --%s: %w", flag.Name, err)
		}
	}
	return v, nil
}

// application builds and boots the kernel.
func (o *rootOptions) application(cmd *cobra.Command, extra map[string]string) (*app.Application, error) {
	v, err := o.viper(cmd, extra)
	if err != nil {
		return nil, err
	}
	a, err := app.New(app.WithViper(v))
	if err != nil {
		return nil, err
	}
	if err := a.Boot(); err != nil {
		return nil, err
	}
	return a, nil
}
