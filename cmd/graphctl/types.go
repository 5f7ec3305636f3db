package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"graphengine/application/factories"
	"graphengine/application/router"
	"graphengine/domain/core/valueobjects"
)

func newTypesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "types [domain] [type]",
		Short: "List node types, or describe one",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			registry, err := factories.NewDefaultRegistry(logger)
			if err != nil {
				return err
			}
			return listTypes(cmd.OutOrStdout(), registry, args, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func listTypes(out io.Writer, registry *factories.Registry, args []string, asJSON bool) error {
	domains := registry.Domains()
	if len(args) > 0 {
		d, err := valueobjects.ParseDomain(args[0])
		if err != nil {
			return err
		}
		domains = []valueobjects.Domain{d}
	}

	var infos []factories.TypeInfo
	for _, d := range domains {
		f, err := registry.FactoryFor(d)
		if err != nil {
			return err
		}
		if len(args) == 2 {
			info, ok := f.Describe(args[1])
			if !ok {
				return fmt.Errorf("%s has no node type %q", d, args[1])
			}
			return printJSON(out, info)
		}
		for _, name := range f.SupportedTypes() {
			if info, ok := f.Describe(name); ok {
				infos = append(infos, info)
			}
		}
	}

	if asJSON {
		return printJSON(out, infos)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tTYPE\tTITLE\tPINS")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", info.Domain, info.Name, info.Title, len(info.Pins))
	}
	return tw.Flush()
}

func newOpsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the operations the router accepts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "OPERATION\tMUTATING\tDESCRIPTION")
			for _, op := range router.Operations() {
				fmt.Fprintf(tw, "%s\t%t\t%s\n", op.Name, op.Mutating, op.Description)
			}
			return tw.Flush()
		},
	}
}
