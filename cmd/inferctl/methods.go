package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/morezero/inference-client/pkg/resource"
)

func methodsCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "methods <model-url>",
		Short: "List the methods a model publishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := newSession(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			model, err := resource.NewModel(resource.ModelConfig{URL: args[0]}, s.defaults, s.deps)
			if err != nil {
				return err
			}
			names, err := model.AvailableMethods(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintln(out, name)
				if !verbose {
					continue
				}
				m, err := model.MethodSignature(ctx, name)
				if err != nil {
					return err
				}
				for _, f := range m.InputFields {
					role := "payload"
					if f.IsParam {
						role = "param"
					}
					req := ""
					if f.Required {
						req = " (required)"
					}
					fmt.Fprintf(out, "  %-20s %-12s %s%s\n", f.Name, f.Type, role, req)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print each method's input fields")
	return cmd
}
