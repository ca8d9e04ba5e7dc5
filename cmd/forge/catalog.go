package main

import (
	"fmt"
	"os"

	"github.com/aretw0/forge/internal/presentation/tui"
	"github.com/aretw0/forge/pkg/catalog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the crafting catalog",
}

var catalogShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the catalog",
	Long:  `Prints every category, subcategory and item with its requirements. Output is styled on a terminal and plain markdown otherwise.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path = cfg.Catalog.Path
		}
		cat, err := catalog.Load(path)
		if err != nil {
			return err
		}

		md := tui.CatalogMarkdown(cat.Tree())
		plain, _ := cmd.Flags().GetBool("plain")
		fd := int(os.Stdout.Fd())
		if plain || !term.IsTerminal(fd) {
			fmt.Fprint(cmd.OutOrStdout(), md)
			return nil
		}

		width, _, err := term.GetSize(fd)
		if err != nil {
			width = 0
		}
		render, err := tui.NewRenderer(width)
		if err != nil {
			return err
		}
		styled, err := render(md)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), styled)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogShowCmd)
	catalogShowCmd.Flags().StringP("file", "f", "", "Catalog file (defaults to catalog.path from the configuration)")
	catalogShowCmd.Flags().Bool("plain", false, "Print raw markdown even on a terminal")
}
