package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/morezero/inference-client/pkg/resource"
	"github.com/morezero/inference-client/pkg/transport"
)

func workflowCmd() *cobra.Command {
	var (
		urls      []string
		files     []string
		inputType string
		minValue  float64
		stateID   string
	)

	cmd := &cobra.Command{
		Use:   "workflow <workflow-url>",
		Short: "Run a workflow on hosted or local inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, pos []string) error {
			t, err := resource.ParseInputType(inputType)
			if err != nil {
				return err
			}
			inputs := make([]transport.Input, 0, len(urls)+len(files))
			for _, u := range urls {
				inputs = append(inputs, resource.InputFromURL("", u, t))
			}
			for _, f := range files {
				data, err := os.ReadFile(f)
				if err != nil {
					return fmt.Errorf("read input %s: %w", f, err)
				}
				inputs = append(inputs, resource.InputFromBytes("", data, t))
			}
			if len(inputs) == 0 {
				return fmt.Errorf("at least one --url or --file is required")
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

			wf, err := resource.NewWorkflow(resource.WorkflowConfig{URL: pos[0], MinValue: minValue}, s.defaults, s.deps)
			if err != nil {
				return err
			}
			resp, err := wf.Predict(ctx, inputs, stateID)
			if err != nil {
				return err
			}
			return printJSON(cmd, resp.Results)
		},
	}

	cmd.Flags().StringSliceVar(&urls, "url", nil, "Hosted input URL (repeatable)")
	cmd.Flags().StringSliceVar(&files, "file", nil, "Local input file (repeatable)")
	cmd.Flags().StringVar(&inputType, "type", "image", "Input type: image, text, video or audio")
	cmd.Flags().Float64Var(&minValue, "min-value", 0, "Minimum concept value to return")
	cmd.Flags().StringVar(&stateID, "state", "", "Workflow state id to reuse")
	return cmd
}
