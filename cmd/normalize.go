package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geolote/internal/address"
)

var normalizeBairro string

var normalizeCmd = &cobra.Command{
	Use:   "normalize <address>",
	Short: "Print the normalized form of one address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := address.LoadRules(cfg.Rules.Path)
		if err != nil {
			return err
		}
		n := address.NewNormalizer(rules, address.NewPlotExtractor(cfg.Plot.Ceiling, rules.InvalidValues))

		addr, nerr := n.Normalize(args[0], normalizeBairro)
		out := map[string]any{
			"address":     args[0],
			"street":      addr.Street,
			"quadra":      addr.Quadra,
			"lote":        addr.Lote,
			"condominium": addr.Condominium,
		}
		if normalizeBairro != "" {
			out["bairro"] = normalizeBairro
		}
		if nerr != nil {
			out["error"] = nerr.Error()
		} else {
			out["normalized"] = addr.String()
		}

		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return eris.Wrap(err, "normalize: encode")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	},
}

func init() {
	normalizeCmd.Flags().StringVar(&normalizeBairro, "bairro", "", "neighborhood of the address")
	rootCmd.AddCommand(normalizeCmd)
}
