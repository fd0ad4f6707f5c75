package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/serbisyo-bataan/matcher/internal/catalog"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the service categories and their keywords",
	Run: func(_ *cobra.Command, _ []string) {
		c := catalog.Default()
		if path := strings.TrimSpace(viper.GetString("catalog-file")); path != "" {
			loaded, err := catalog.LoadFile(path)
			if err != nil {
				log.Fatalf("loading category catalog: %s", err)
			}
			c = loaded
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tCOST RANGE\tCOMPLEXITY\tKEYWORDS")
		for _, category := range c.Categories() {
			fmt.Fprintf(w, "%s\t%.0f-%.0f\t%d\t%s\n",
				category.Name,
				category.CostRange.Min,
				category.CostRange.Max,
				category.DefaultComplexity,
				strings.Join(category.Keywords, ", "),
			)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}
