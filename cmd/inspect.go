package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newKeysCommand(opts *rootOptions) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List registered keys and aliases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.application(cmd, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, key := range a.Keys() {
				if strings.HasPrefix(key, prefix) {
					fmt.Fprintln(out, key)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "only keys starting with prefix")
	return cmd
}

// entry is what get prints for one key.
type entry struct {
	Key       string `json:"key" yaml:"key"`
	Canonical string `json:"canonical" yaml:"canonical"`
	Shared    bool   `json:"shared" yaml:"shared"`
	Protected bool   `json:"protected" yaml:"protected"`
	Type      string `json:"type" yaml:"type"`
	Value     string `json:"value" yaml:"value"`
}

func newGetCommand(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Resolve a key and describe the result",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(*cobra.Command, []string) error {
			return checkFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.application(cmd, nil)
			if err != nil {
				return err
			}
			key := args[0]
			instance, err := a.Get(key)
			if err != nil {
				return err
			}
			e := entry{
				Key:       key,
				Canonical: a.Canonical(key),
				Type:      fmt.Sprintf("%T", instance),
				Value:     fmt.Sprintf("%+v", instance),
			}
			e.Shared, _ = a.IsShared(key)
			e.Protected, _ = a.IsProtected(key)
			return write(cmd.OutOrStdout(), format, e)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "output format: yaml or json")
	return cmd
}

func newTaggedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tagged <tag>",
		Short: "Resolve every key of a tag, in tag order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.application(cmd, nil)
			if err != nil {
				return err
			}
			tag := args[0]
			instances, err := a.Tagged(tag)
			if err != nil {
				return err
			}
			keys := a.TaggedKeys(tag)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tTYPE")
			for i, key := range keys {
				fmt.Fprintf(w, "%s\t%T\n", key, instances[i])
			}
			return w.Flush()
		},
	}
}

func checkFormat(format string) error {
	switch format {
	case "yaml", "json":
		return nil
	}
	return fmt.Errorf("unsupported output format %q (want yaml or json)", format)
}

func write(out io.Writer, format string, v any) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
