// cli.go holds the chatstate CLI entrypoint (Main), the root command and its flags.
package chatcli

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

const defaultTimeout = 30 * time.Second

// Main runs the chatstate CLI.
func Main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatstate",
	Short: "Inspect and edit chat conversations from the terminal.",
	Long: `chatstate manages chat conversations: sessions, topics and the messages in them.
Edits are applied locally first and then confirmed by the backend.
State is stored in SQLite unless --server points at a chatserver.

  Quickstart:
    chatstate send "hello"             # add a user message to the active conversation
    chatstate list                     # print the active conversation
    chatstate topic create "ideas"     # start a topic and switch to it
    chatstate delete <id>              # delete a message with its tool results

Settings are read from .chatstate/config.yaml; flags win over the file.`,
	SilenceUsage: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("db", "", "SQLite database path (default: .chatstate/local.db)")
	f.String("server", "", "Base URL of a chatserver; when set the local database is not used")
	f.String("valkey", "", "Valkey address for the shared query cache (e.g. 127.0.0.1:6379)")
	f.String("nats-url", "", "NATS URL for trace records and cache staleness broadcasts")
	f.String("session", "", "Session to act on (persists as the active session)")
	f.String("topic", "", "Topic to act on (persists as the active topic)")
	f.Bool("trace", false, "Log operations and message traces on stderr")
	f.Duration("timeout", defaultTimeout, "Maximum execution time (e.g., 30s, 2m)")
	f.Bool("raw", false, "Print messages as JSON")

	rootCmd.AddCommand(sendCmd, aiCmd, listCmd, deleteCmd, deleteToolCmd, editCmd, copyCmd,
		setErrorCmd, metaCmd, clearCmd, clearAllCmd, topicCmd, sessionCmd)
	rootCmd.InitDefaultHelpCmd()
}
