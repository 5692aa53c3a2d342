package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/sells-group/geolote/internal/export"
	"github.com/sells-group/geolote/internal/model"
	"github.com/sells-group/geolote/internal/resolver"
	"github.com/sells-group/geolote/internal/sheet"
)

var (
	resolveFile    string
	resolveOutput  string
	resolveFormat  string
	resolveOffline bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve every address in a workbook and export the results",
	Long:  "Reads an XLSX delivery export, resolves each row and writes json, xlsx, geojson, circuit or shp output. Text formats go to stdout unless --output is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format := strings.ToLower(resolveFormat)
		switch format {
		case "json", "xlsx", "geojson", "circuit", "shp":
		default:
			return eris.Errorf("resolve: unsupported format %q", resolveFormat)
		}

		mode := "resolve"
		if resolveOffline {
			mode = "offline"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		tbl, err := sheet.ReadFile(resolveFile, sheetOptions(cfg))
		if err != nil {
			return err
		}

		env, err := initResolver(ctx, cfg, resolveOffline)
		if err != nil {
			return err
		}
		defer env.Close()

		var bar *progressbar.ProgressBar
		if isatty.IsTerminal(os.Stderr.Fd()) {
			bar = progressbar.NewOptions(len(tbl.Records),
				progressbar.OptionSetDescription("Resolving "+filepath.Base(resolveFile)),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}

		results, sum := env.Resolver.ResolveBatch(ctx, tbl.Records, resolver.BatchOptions{
			MaxRows: cfg.Batch.MaxConcurrentRows,
			Store:   env.Store,
			OnRow: func(model.MatchResult) {
				if bar != nil {
					_ = bar.Add(1)
				}
			},
		})
		if bar != nil {
			_ = bar.Finish()
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "%d rows: %d found, %d partial, %d condominium, %d not found (%s)\n",
			sum.Total, sum.Found, sum.Partial, sum.Condominium, sum.NotFound, sum.Duration.Round(time.Millisecond))

		ds := export.NewDataset(tbl, results)
		out := resolveOutput
		if out == "" {
			out = defaultOutput(resolveFile, format)
		}

		if format == "shp" {
			if err := export.WriteShapefile(out, ds, cfg.Sheet.AddressColumn); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
			return nil
		}

		var w io.Writer = cmd.OutOrStdout()
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return eris.Wrapf(err, "resolve: create %s", out)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		bw := bufio.NewWriter(w)
		if err := writeFormat(bw, format, ds, results, sum); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return eris.Wrap(err, "resolve: flush output")
		}
		if out != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
		}
		return nil
	},
}

func writeFormat(w io.Writer, format string, ds *export.Dataset, results []model.MatchResult, sum resolver.Summary) error {
	switch format {
	case "xlsx":
		return export.WriteXLSX(w, ds)
	case "geojson":
		return export.WriteGeoJSON(w, ds)
	case "circuit":
		return export.WriteCircuit(w, results)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(map[string]any{
			"summary": sum,
			"data":    ds.Records(),
		}), "resolve: encode json")
	}
}

// defaultOutput names the file for binary formats. Text formats default to
// stdout, signalled by "".
func defaultOutput(input, format string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	dir := filepath.Dir(input)
	switch format {
	case "xlsx":
		return filepath.Join(dir, base+"_geolote.xlsx")
	case "shp":
		return filepath.Join(dir, base+".shp")
	default:
		return ""
	}
}

func init() {
	resolveCmd.Flags().StringVar(&resolveFile, "file", "", "input workbook (.xlsx)")
	resolveCmd.Flags().StringVarP(&resolveOutput, "output", "o", "", "output path (text formats default to stdout)")
	resolveCmd.Flags().StringVar(&resolveFormat, "format", "json", "output format: json, xlsx, geojson, circuit, shp")
	resolveCmd.Flags().BoolVar(&resolveOffline, "offline", false, "skip geocoding; every non-condominium row reports NO_KEY")
	_ = resolveCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(resolveCmd)
}
