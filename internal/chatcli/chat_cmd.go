// chat_cmd.go holds the message subcommands (send, ai, list, delete, edit, copy, clear).
package chatcli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/contenox/chatstate/chatservice"
	"github.com/contenox/chatstate/chattypes"
	"github.com/contenox/chatstate/querycache"
	"github.com/spf13/cobra"
)

var errMessageNotFound = errors.New("message not found in the active conversation")

var sendCmd = &cobra.Command{
	Use:   "send <text...>",
	Short: "Add a user message to the active conversation.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSend,
}

var aiCmd = &cobra.Command{
	Use:   "ai <text...>",
	Short: "Add an assistant message to the active conversation.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAI,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the active conversation.",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a message together with its tool results or group children.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var deleteToolCmd = &cobra.Command{
	Use:   "delete-tool <id>",
	Short: "Delete a tool result and drop the call from the owning assistant message.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteTool,
}

var editCmd = &cobra.Command{
	Use:   "edit <id> <content...>",
	Short: "Replace the content of a message.",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runEdit,
}

var copyCmd = &cobra.Command{
	Use:   "copy <id>",
	Short: "Copy the content of a message to the clipboard.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCopy,
}

var setErrorCmd = &cobra.Command{
	Use:   "set-error <id> [message]",
	Short: "Attach an error to a message; without a message the error is cleared.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSetError,
}

var metaCmd = &cobra.Command{
	Use:   "meta <id> <key=value...>",
	Short: "Merge metadata into a message.",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runMeta,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the active conversation; a topic is removed as well.",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var clearAllCmd = &cobra.Command{
	Use:   "clear-all",
	Short: "Delete every message of every session.",
	Args:  cobra.NoArgs,
	RunE:  runClearAll,
}

func init() {
	sendCmd.Flags().StringSlice("file", nil, "Attach a file id (repeatable)")
	listCmd.Flags().Bool("group", false, "Read the group view of the conversation")
	setErrorCmd.Flags().String("type", "error", "Error type recorded with the message")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	files, _ := cmd.Flags().GetStringSlice("file")
	if err := eng.manager.AddUserMessage(ctx, chatservice.UserMessage{
		Message:  strings.Join(args, " "),
		FileList: files,
	}); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if err := eng.persist(); err != nil {
		return err
	}
	return printLast(cmd, eng.manager.Messages())
}

func runAI(cmd *cobra.Command, args []string) error {
	ctx, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng.manager.UpdateMessageInput(strings.Join(args, " "))
	if err := eng.manager.AddAIMessage(ctx); err != nil {
		return fmt.Errorf("failed to add assistant message: %w", err)
	}
	if err := eng.persist(); err != nil {
		return err
	}
	return printLast(cmd, eng.manager.Messages())
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	mode := querycache.ModeSession
	if group, _ := cmd.Flags().GetBool("group"); group {
		mode = querycache.ModeGroup
	}
	active := eng.manager.Active()
	msgs, err := eng.coord.FetchMessages(ctx, active.SessionID, active.TopicID, mode)
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}
	return printMessages(cmd, msgs)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := eng.hydrate(ctx); err != nil {
		return err
	}
	if _, ok := chattypes.Find(eng.manager.Messages(), args[0]); !ok {
		return fmt.Errorf("%s: %w", args[0], errMessageNotFound)
	}
	if err := eng.manager.DeleteMessage(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

func runDeleteTool(cmd *cobra.Command, args []string) error {
	ctx, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := eng.hydrate(ctx); err != nil {
		return err
	}
	msg, ok := chattypes.Find(eng.manager.Messages(), args[0])
	if !ok {
		return fmt.Errorf("%s: %w", args[0], errMessageNotFound)
	}
	if msg.Role != chattypes.RoleTool {
		return fmt.Errorf("%s is a %s message, not a tool result", msg.ID, msg.Role)
	}
	if err := eng.manager.DeleteToolMessage(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to delete tool message: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := eng.hydrate(ctx); err != nil {
		return err
	}
	id := args[0]
	if _, ok := chattypes.Find(eng.manager.Messages(), id); !ok {
		return fmt.Errorf("%s: %w", id, errMessageNotFound)
	}
	eng.manager.ToggleMessageEditing(id, true)
	defer eng.manager.ToggleMessageEditing(id, false)
	if err := eng.manager.ModifyMessageContent(ctx, id, strings.Join(args[1:], " ")); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	msg, _ := chattypes.Find(eng.manager.Messages(), id)
	return printMessages(cmd, []chattypes.Message{msg})
}

func runCopy(cmd *cobra.Command, args []string) error {
	ctx, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := eng.hydrate(ctx); err != nil {
		return err
	}
	msg, ok := chattypes.Find(eng.manager.Messages(), args[0])
	if !ok {
		return fmt.Errorf("%s: %w", args[0], errMessageNotFound)
	}
	if err := eng.manager.CopyMessage(ctx, msg.ID, msg.Content); err != nil {
		return fmt.Errorf("failed to copy message: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "copied %s\n", msg.ID)
	return nil
}

func runSetError(cmd *cobra.Command, args []string) error {
	ctx, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var msgErr *chattypes.MessageError
	if len(args) == 2 {
		typ, _ := cmd.Flags().GetString("type")
		msgErr = &chattypes.MessageError{Type: typ, Message: args[1]}
	}
	if err := eng.manager.OptimisticUpdateMessageError(ctx, args[0], msgErr, nil); err != nil {
		return fmt.Errorf("failed to update message error: %w", err)
	}
	return nil
}

func runMeta(cmd *cobra.Command, args []string) error {
	metadata, err := parseMetadata(args[1:])
	if err != nil {
		return err
	}
	ctx, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := eng.manager.OptimisticUpdateMessageMetadata(ctx, args[0], metadata, nil); err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}
	return nil
}

// parseMetadata turns key=value pairs into a metadata map.
func parseMetadata(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q, want key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	ctx, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := eng.manager.ClearMessage(ctx); err != nil {
		return fmt.Errorf("failed to clear conversation: %w", err)
	}
	return eng.persist()
}

func runClearAll(cmd *cobra.Command, _ []string) error {
	ctx, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := eng.manager.ClearAllMessages(ctx); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}
