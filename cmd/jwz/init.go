package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/femtomc/jwz/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new store in the current directory",
	Long: `Create a .jwz store in the current directory.

The store starts with an empty log; the index is created on first use.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}

		root, err := store.Init(cwd)
		if err != nil {
			return err
		}
		fmt.Printf("Initialized store in %s\n", root)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
