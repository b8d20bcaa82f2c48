package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/candidate-cli/internal/fetcher"
	"github.com/sells-group/candidate-cli/internal/model"
	"github.com/sells-group/candidate-cli/internal/registry"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Inspect the canonical taxonomy",
}

// -- taxonomy show --

var taxonomyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print taxonomy counts, or the full document with --yaml",
	RunE: func(cmd *cobra.Command, _ []string) error {
		asYAML, _ := cmd.Flags().GetBool("yaml")
		if asYAML {
			doc := registry.Builtin()
			if cfg.Taxonomy.Path != "" {
				d, err := registry.LoadFile(cfg.Taxonomy.Path)
				if err != nil {
					return err
				}
				doc = d
			}
			out, err := doc.Marshal()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		}

		reg, err := initRegistry(cmd.Context())
		if err != nil {
			return err
		}
		formatTaxonomy(os.Stdout, reg)
		return nil
	},
}

// -- taxonomy export --

var taxonomyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the master lists to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		output, _ := cmd.Flags().GetString("output")

		reg, err := initRegistry(cmd.Context())
		if err != nil {
			return err
		}
		if err := fetcher.WriteXLSX(output, masterSheets(reg)); err != nil {
			return eris.Wrap(err, "taxonomy export")
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", output) //nolint:errcheck
		return nil
	},
}

func init() {
	taxonomyShowCmd.Flags().Bool("yaml", false, "print the taxonomy document as YAML")
	taxonomyExportCmd.Flags().String("output", "taxonomy.xlsx", "workbook path")

	taxonomyCmd.AddCommand(taxonomyShowCmd)
	taxonomyCmd.AddCommand(taxonomyExportCmd)
	rootCmd.AddCommand(taxonomyCmd)
}

func formatTaxonomy(out io.Writer, reg *registry.Registry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Version:\t%s\n", reg.Version())
	_, _ = fmt.Fprintln(w, "CATEGORY\tTERMS\tPATTERNS")
	for _, cat := range model.Categories {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", cat, len(reg.Terms(cat)), len(reg.Rules(cat)))
	}
	_, _ = fmt.Fprintf(w, "Level abbreviations:\t%d\n", len(reg.Abbreviations()))
	_, _ = fmt.Fprintf(w, "States:\t%d\n", reg.States())
	_ = w.Flush()
}

// masterSheets lays the registry out as one sheet per vocabulary plus the
// pattern mappings, in authoring order.
func masterSheets(reg *registry.Registry) []fetcher.Sheet {
	terms := func(name string, cat model.Category) fetcher.Sheet {
		rows := [][]string{{name}}
		for _, t := range reg.Terms(cat) {
			rows = append(rows, []string{t})
		}
		return fetcher.Sheet{Name: name, Rows: rows}
	}

	mapping := [][]string{{"category", "pattern", "canonical"}}
	for _, cat := range model.Categories {
		for _, r := range reg.Rules(cat) {
			mapping = append(mapping, []string{string(cat), r.Pattern, r.Canonical})
		}
	}
	for _, r := range reg.Abbreviations() {
		mapping = append(mapping, []string{"level abbreviation", r.Pattern, r.Canonical})
	}

	cities := [][]string{{"City", "State"}}
	for _, c := range reg.Cities() {
		cities = append(cities, []string{c.Name, c.State})
	}

	return []fetcher.Sheet{
		terms("Roles", model.CategoryRole),
		terms("Levels", model.CategoryLevel),
		terms("Skills", model.CategorySkill),
		{Name: "Cities", Rows: cities},
		{Name: "Mapping", Rows: mapping},
	}
}
