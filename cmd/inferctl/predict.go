package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/morezero/inference-client/pkg/args"
	"github.com/morezero/inference-client/pkg/resource"
	"github.com/morezero/inference-client/pkg/transport"
)

func predictCmd() *cobra.Command {
	var (
		method     string
		argsJSON   string
		argsFile   string
		deployment string
		nodepool   string
	)

	cmd := &cobra.Command{
		Use:   "predict <model-url>",
		Short: "Call a model method",
		Long: `Call a model method with named arguments.

Arguments are given as a JSON object with --args or as a YAML/JSON file with
--args-file. Key order is kept on the wire.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, pos []string) error {
			in, err := readArgs(argsJSON, argsFile)
			if err != nil {
				return err
			}
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

			mc := resource.ModelConfig{URL: pos[0]}
			if deployment != "" || nodepool != "" {
				mc.Runner = &resource.RunnerConfig{DeploymentID: deployment, NodepoolID: nodepool}
			}
			model, err := resource.NewModel(mc, s.defaults, s.deps)
			if err != nil {
				return err
			}
			resp, err := model.Predict(ctx, method, in)
			if err != nil {
				return err
			}
			data, err := resource.OutputData(resp)
			if err != nil {
				return err
			}
			return printJSON(cmd, data)
		},
	}

	cmd.Flags().StringVarP(&method, "method", "m", "predict", "Method name")
	cmd.Flags().StringVar(&argsJSON, "args", "", "Arguments as a JSON object")
	cmd.Flags().StringVar(&argsFile, "args-file", "", "Arguments file (YAML or JSON)")
	cmd.Flags().StringVar(&deployment, "deployment", "", "Route to a dedicated deployment")
	cmd.Flags().StringVar(&nodepool, "nodepool", "", "Route to a nodepool")
	cmd.MarkFlagsMutuallyExclusive("args", "args-file")
	return cmd
}

// readArgs parses --args or --args-file. Neither yields empty arguments.
func readArgs(argsJSON, argsFile string) (*args.Args, error) {
	switch {
	case argsJSON != "":
		a, err := args.ParseJSON([]byte(argsJSON))
		if err != nil {
			return nil, fmt.Errorf("parse --args: %w", err)
		}
		return a, nil
	case argsFile != "":
		data, err := os.ReadFile(argsFile)
		if err != nil {
			return nil, fmt.Errorf("read --args-file: %w", err)
		}
		a, err := args.ParseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("parse --args-file: %w", err)
		}
		return a, nil
	}
	return args.New(), nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := transport.Encode(v)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
