package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List recent crafting requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := openRecords(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.RecentRecords(cmd.Context(), owner, limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		if len(records) == 0 {
			fmt.Fprintln(out, "No requests recorded.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CREATED\tOWNER\tCHARACTER\tITEM\tMODE\tPROVIDED")
		for _, r := range records {
			provided := make([]string, 0, len(r.Resources))
			for _, l := range r.Resources {
				provided = append(provided, fmt.Sprintf("%s %d/%d", l.Resource, l.Provided, l.Required))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s / %s / %s\t%s\t%s\n",
				r.CreatedAt.Format(time.DateTime), r.OwnerID, r.CharacterName,
				r.Category, r.Subcategory, r.Item, r.Mode, strings.Join(provided, ", "))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.Flags().String("owner", "", "Only show requests of this Discord user")
	recordsCmd.Flags().IntP("limit", "n", 20, "Maximum number of requests")
	recordsCmd.Flags().Bool("json", false, "Print JSON")
}
