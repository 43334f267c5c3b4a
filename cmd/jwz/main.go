// jwz is a local message store for asynchronous machine-to-machine
// communication: topic-rooted messages, threaded replies, full-text
// search, and content-addressed attachments, backed by an append-only
// log and a rebuildable SQLite index.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/femtomc/jwz/internal/namegen"
	"github.com/femtomc/jwz/internal/store"
	"github.com/femtomc/jwz/internal/types"
)

var rootCtx = context.Background()

var rootCmd = &cobra.Command{
	Use:   "jwz",
	Short: "Message store for asynchronous machine-to-machine mail",
	Long: `jwz stores topic-rooted messages and threaded replies in a local
store discovered by walking up from the working directory.

The append-only log (messages.jsonl) is the source of truth; the
SQLite index is a cache rebuilt from it on demand.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("store", "", "store directory (overrides discovery)")
	rootCmd.PersistentFlags().Bool("verbose", false, "write a debug log under the store directory")

	viper.SetEnvPrefix("JWZ")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// openStore discovers (or takes from --store / JWZ_STORE) the store
// root and opens it.
func openStore(ctx context.Context) (*store.Store, error) {
	root := viper.GetString("store")
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root, err = store.Discover(cwd)
		if err != nil {
			return nil, err
		}
	}

	loadStoreConfig(root)
	setupLogging(root)
	slog.Debug("store opened", "root", root)
	return store.Open(ctx, root)
}

// loadStoreConfig reads the optional config.yml inside the store
// directory (default sender name, model, role).
func loadStoreConfig(root string) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(root)
	_ = viper.ReadInConfig() // optional
}

// setupLogging routes slog to a rotating debug log under the store
// directory when --verbose or JWZ_VERBOSE is set, and discards debug
// output otherwise.
func setupLogging(root string) {
	if !viper.GetBool("verbose") {
		slog.SetLogLoggerLevel(slog.LevelWarn)
		return
	}
	w := &lumberjack.Logger{
		Filename:   filepath.Join(root, "jwz.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

// currentSender builds the sender record from config, falling back to
// a memorable name derived from the local user and host.
func currentSender() *types.Sender {
	id := viper.GetString("sender.id")
	if id == "" {
		host, _ := os.Hostname()
		if u, err := user.Current(); err == nil {
			id = u.Username + "@" + host
		} else {
			id = "unknown@" + host
		}
	}

	name := viper.GetString("sender.name")
	if name == "" {
		name = namegen.ForSeed(id)
	}

	return &types.Sender{
		ID:    id,
		Name:  name,
		Model: viper.GetString("sender.model"),
		Role:  viper.GetString("sender.role"),
	}
}

// errorMessage maps error kinds to the short user-visible form.
// Unknown errors surface their own message as a fallback.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, types.ErrStoreNotFound):
		return "no store found (run 'jwz init' first)"
	case errors.Is(err, types.ErrStoreExists):
		return "a store already exists here"
	case errors.Is(err, types.ErrTopicNotFound):
		return "topic not found"
	case errors.Is(err, types.ErrTopicExists):
		return "a topic with that name already exists"
	case errors.Is(err, types.ErrMessageNotFound):
		return "message not found"
	case errors.Is(err, types.ErrMessageIDAmbiguous):
		return "message id is ambiguous; give more characters"
	case errors.Is(err, types.ErrInvalidMessageID):
		return "invalid message id"
	case errors.Is(err, types.ErrParentNotFound):
		return "parent message not found"
	case errors.Is(err, types.ErrEmptyTopicName):
		return "topic name must not be empty"
	case errors.Is(err, types.ErrEmptyMessageBody):
		return "message body must not be empty"
	case errors.Is(err, types.ErrBlobNotFound):
		return "blob not found"
	case errors.Is(err, types.ErrDatabaseBusy):
		return "store is busy; try again"
	default:
		return err.Error()
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "jwz: %s\n", errorMessage(err))
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}
