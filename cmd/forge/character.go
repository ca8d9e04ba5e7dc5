package main

import (
	"fmt"

	"github.com/aretw0/forge/pkg/adapters/sqlite"
	"github.com/spf13/cobra"
)

var characterCmd = &cobra.Command{
	Use:   "character",
	Short: "Manage the characters players can request for",
}

var characterAddCmd = &cobra.Command{
	Use:   "add <owner-id> <name>",
	Short: "Register a character for a Discord user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openRecords(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		c, err := store.RegisterCharacter(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s) for %s\n", c.Name, c.ID, c.OwnerID)
		return nil
	},
}

var characterListCmd = &cobra.Command{
	Use:   "list <owner-id>",
	Short: "List the characters of a Discord user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openRecords(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		chars, err := store.CharactersFor(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(chars) == 0 {
			fmt.Fprintln(out, "No characters registered.")
			return nil
		}
		for _, c := range chars {
			fmt.Fprintf(out, "- %s (%s)\n", c.Name, c.ID)
		}
		return nil
	},
}

func openRecords(cmd *cobra.Command) (*sqlite.RecordStore, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return sqlite.Open(cfg.Storage.Path)
}

func init() {
	rootCmd.AddCommand(characterCmd)
	characterCmd.AddCommand(characterAddCmd, characterListCmd)
}
