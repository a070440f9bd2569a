package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/incentive"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <schemes-file>...",
		Short: "Parse and validate scheme files (JSON or YAML)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			f := schemeFactory(cfg)

			failed := 0
			for _, path := range args {
				schemes, err := f.LoadFile(path)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "OK   %s (%d schemes)\n", path, len(schemes))
				printSchemes(cmd.OutOrStdout(), schemes)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed validation", failed, len(args))
			}
			return nil
		},
	}
}

func printSchemes(w io.Writer, schemes []incentive.SchemeDefinition) {
	for _, s := range schemes {
		mode := string(s.EffectiveMode())
		if mode == "" {
			mode = string(s.Category)
		}
		fmt.Fprintf(w, "     - %-20s %-18s %s\n", s.ID, mode, s.Name)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.New(cmd.Context()), nil
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return config.Load(ctx, path)
}

func schemeFactory(cfg *config.Config) *factory.SchemeFactory {
	return factory.NewSchemeFactory(factory.WithDefaultForwardRequirement(cfg.ForwardRequirement()))
}
