package main

import (
	"github.com/spf13/cobra"

	"github.com/morezero/inference-client/internal/stubserver"
)

func stubCmd() *cobra.Command {
	var (
		signatures string
		deploying  int
		embed      bool
	)

	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Run a local stub inference server",
		Long: `Run a stub server that answers describe calls from a signature file and
predict calls with MODEL_DEPLOYING for the first --deploying calls per resource,
then SUCCESS echoing the inputs. Serves /health and /metrics on METRICS_ADDR.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("signatures") {
				cfg.SignatureFile = signatures
			}
			if cmd.Flags().Changed("deploying") {
				cfg.DeployingCalls = deploying
			}
			if cmd.Flags().Changed("embed-comms") {
				cfg.EmbedComms = embed
			}
			if err := cfg.ValidateForStub(); err != nil {
				return err
			}
			return stubserver.Run(cfg)
		},
	}

	cmd.Flags().StringVar(&signatures, "signatures", "", "Signature fixture file (YAML or JSON); overrides SIGNATURE_FILE")
	cmd.Flags().IntVar(&deploying, "deploying", 0, "Deploying replies per resource; overrides STUB_DEPLOYING_CALLS")
	cmd.Flags().BoolVar(&embed, "embed-comms", false, "Run an in-process COMMS broker on COMMS_URL; overrides STUB_EMBED_COMMS")
	return cmd
}
