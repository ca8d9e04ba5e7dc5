package main

import (
	"fmt"

	"github.com/aretw0/forge/pkg/catalog"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and the catalog",
	Long:  `Loads the configuration and the crafting catalog and reports every problem found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration is invalid:\n%w", err)
		}

		cat, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		subs, items := 0, 0
		for _, c := range cat.Tree() {
			subs += len(c.Subcategories)
			for _, s := range c.Subcategories {
				items += len(s.Items)
			}
		}
		fmt.Fprintf(out, "Catalog %s: %d categories, %d subcategories, %d items\n",
			cfg.Catalog.Path, len(cat.Categories()), subs, items)
		if cfg.Discord.Token == "" {
			fmt.Fprintln(out, "Note: no Discord token configured; `forge serve` will refuse to start.")
		}
		fmt.Fprintln(out, "Configuration is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
