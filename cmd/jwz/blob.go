package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/femtomc/jwz/internal/ui"
)

var blobCmd = &cobra.Command{
	Use:   "blob",
	Short: "Content-addressed binary attachments",
}

var blobPutCmd = &cobra.Command{
	Use:   "put <file>",
	Short: "Store a file as a blob and print its identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mime, _ := cmd.Flags().GetString("mime")

		data, err := os.ReadFile(args[0]) // #nosec G304 - user-supplied path
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		st, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		id, err := st.Storage().PutBlob(rootCtx, data, mime)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var blobGetCmd = &cobra.Command{
	Use:   "get <blob-id>",
	Short: "Write a blob's bytes to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		data, err := st.Storage().GetBlob(rootCtx, args[0])
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var blobInfoCmd = &cobra.Command{
	Use:   "info <blob-id>",
	Short: "Show blob metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		info, err := st.Storage().GetBlobInfo(rootCtx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s\n  size: %s\n", info.ID, humanize.Bytes(uint64(info.Size)))
		if info.MimeType != "" {
			fmt.Printf("  mime: %s\n", info.MimeType)
		}
		fmt.Printf("  created: %s\n", ui.TimeAgo(info.CreatedAt))
		return nil
	},
}

var blobAttachCmd = &cobra.Command{
	Use:   "attach <message-id> <blob-id>",
	Short: "Attach a blob to a message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")

		st, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if err := st.Storage().AttachBlob(rootCtx, args[0], args[1], name); err != nil {
			return err
		}
		fmt.Println("Attached")
		return nil
	},
}

var blobAttachmentsCmd = &cobra.Command{
	Use:   "attachments <message-id>",
	Short: "List a message's attachments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		attachments, err := st.Storage().ListAttachments(rootCtx, args[0])
		if err != nil {
			return err
		}
		for _, a := range attachments {
			if a.Name != "" {
				fmt.Printf("%s\t%s\n", a.BlobID, a.Name)
			} else {
				fmt.Println(a.BlobID)
			}
		}
		return nil
	},
}

func init() {
	blobPutCmd.Flags().String("mime", "", "mime type label")
	blobAttachCmd.Flags().String("name", "", "display name for the attachment")
	blobCmd.AddCommand(blobPutCmd)
	blobCmd.AddCommand(blobGetCmd)
	blobCmd.AddCommand(blobInfoCmd)
	blobCmd.AddCommand(blobAttachCmd)
	blobCmd.AddCommand(blobAttachmentsCmd)
	rootCmd.AddCommand(blobCmd)
}
