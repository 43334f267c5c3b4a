package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/femtomc/jwz/internal/gitctx"
	"github.com/femtomc/jwz/internal/storage"
	"github.com/femtomc/jwz/internal/types"
	"github.com/femtomc/jwz/internal/ui"
)

// readBody takes the message body from args or, when absent, stdin.
func readBody(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read body from stdin: %w", err)
	}
	return string(data), nil
}

// post creates a message, capturing sender identity and git context
// from the environment.
func post(s storage.Storage, topic, parent string, args []string) error {
	body, err := readBody(args)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	git, err := gitctx.Capture(cwd)
	if err != nil {
		return err
	}

	id, err := s.CreateMessage(rootCtx, &types.NewMessage{
		Topic:    topic,
		ParentID: parent,
		Body:     body,
		Sender:   currentSender(),
		Git:      git,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Posted %s\n", ui.ShortID(id))
	return nil
}

var postCmd = &cobra.Command{
	Use:   "post <topic> [body]",
	Short: "Post a message to a topic",
	Long: `Post a message to a topic. The body comes from the argument or,
when omitted, from stdin.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		return post(st.Storage(), args[0], "", args[1:])
	},
}

var replyCmd = &cobra.Command{
	Use:   "reply <message-id> [body]",
	Short: "Reply to a message",
	Long: `Reply to a message, identified by its full identifier or a unique
prefix. The reply lands in the same topic as its parent.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		parent, err := st.Storage().GetMessage(rootCtx, args[0])
		if err != nil {
			return err
		}
		topic, err := st.Storage().GetTopicByID(rootCtx, parent.TopicID)
		if err != nil {
			return err
		}
		return post(st.Storage(), topic.Name, parent.ID, args[1:])
	},
}

func init() {
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(replyCmd)
}
