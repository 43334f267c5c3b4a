package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List topics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		topics, err := st.Storage().ListTopics(rootCtx)
		if err != nil {
			return err
		}
		for _, t := range topics {
			if t.Description != "" {
				fmt.Printf("%s\t%s\n", t.Name, t.Description)
			} else {
				fmt.Println(t.Name)
			}
		}
		return nil
	},
}

var topicsNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		st, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		id, err := st.Storage().CreateTopic(rootCtx, args[0], description)
		if err != nil {
			return err
		}
		fmt.Printf("Created topic %s (%s)\n", args[0], id)
		return nil
	},
}

func init() {
	topicsNewCmd.Flags().StringP("description", "d", "", "topic description")
	topicsCmd.AddCommand(topicsNewCmd)
	rootCmd.AddCommand(topicsCmd)
}
