package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/femtomc/jwz/internal/ui"
)

var showCmd = &cobra.Command{
	Use:   "show <message-id>",
	Short: "Show one message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		m, err := st.Storage().GetMessage(rootCtx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(ui.RenderMessage(m))
		return nil
	},
}

var threadCmd = &cobra.Command{
	Use:   "thread <message-id>",
	Short: "Show a message and all its transitive replies as a tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		msgs, err := st.Storage().Thread(rootCtx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(ui.RenderThread(msgs))
		return nil
	},
}

var repliesCmd = &cobra.Command{
	Use:   "replies <message-id>",
	Short: "List the immediate replies to a message, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		msgs, err := st.Storage().Replies(rootCtx, args[0])
		if err != nil {
			return err
		}
		fmt.Print(ui.RenderList(msgs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(threadCmd)
	rootCmd.AddCommand(repliesCmd)
}
