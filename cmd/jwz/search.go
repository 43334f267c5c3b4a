package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/femtomc/jwz/internal/ui"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over message bodies",
	Long: `Full-text search over message bodies. The query matches as a single
phrase; fts operator characters have no special meaning.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		msgs, err := st.Storage().SearchMessages(rootCtx, args[0], topic, limit)
		if err != nil {
			return err
		}
		fmt.Print(ui.RenderList(msgs))
		return nil
	},
}

func init() {
	searchCmd.Flags().StringP("topic", "t", "", "restrict the search to one topic")
	searchCmd.Flags().IntP("limit", "n", 20, "maximum number of results")
	rootCmd.AddCommand(searchCmd)
}
