package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/femtomc/jwz/internal/ui"
)

var listCmd = &cobra.Command{
	Use:   "list <topic>",
	Short: "List root messages in a topic, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		msgs, err := st.Storage().ListMessages(rootCtx, args[0], limit)
		if err != nil {
			return err
		}
		fmt.Print(ui.RenderList(msgs))
		return nil
	},
}

func init() {
	listCmd.Flags().IntP("limit", "n", 20, "maximum number of messages")
	rootCmd.AddCommand(listCmd)
}
