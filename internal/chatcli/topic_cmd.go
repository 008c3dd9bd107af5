// topic_cmd.go holds the topic subcommand tree (create, list, switch, remove).
package chatcli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var topicCmd = &cobra.Command{
	Use:   "topic",
	Short: "Manage the topics of the active session (create, list, switch, remove).",
	Long: `Topics split a session into separate conversations.
Messages outside any topic form the session's default conversation.

  chatstate topic create [title]   create a topic and make it active
  chatstate topic list             list topics (* = active)
  chatstate topic switch [id]      switch topic; no id selects the default conversation
  chatstate topic remove <id>      remove a topic and its messages`,
	SilenceUsage: true,
}

var topicCreateCmd = &cobra.Command{
	Use:   "create [title...]",
	Short: "Create a topic and make it active.",
	RunE:  runTopicCreate,
}

var topicListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the topics of the active session (* = active).",
	Args:  cobra.NoArgs,
	RunE:  runTopicList,
}

var topicSwitchCmd = &cobra.Command{
	Use:   "switch [id]",
	Short: "Switch the active topic.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTopicSwitch,
}

var topicRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a topic and all its messages.",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopicRemove,
}

func init() {
	topicCmd.AddCommand(topicCreateCmd, topicListCmd, topicSwitchCmd, topicRemoveCmd)
}

func runTopicCreate(cmd *cobra.Command, args []string) error {
	ctx, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	topic, err := eng.topics.CreateTopic(ctx, eng.manager.Active().SessionID, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}
	if err := eng.manager.RefreshTopic(ctx); err != nil {
		return err
	}
	eng.manager.SwitchTopic(topic.ID)
	if err := eng.persist(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created topic %s\n", topic.ID)
	return nil
}

func runTopicList(cmd *cobra.Command, _ []string) error {
	ctx, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	active := eng.manager.Active()
	topics, err := eng.topics.ListTopics(ctx, active.SessionID)
	if err != nil {
		return fmt.Errorf("failed to list topics: %w", err)
	}
	w := cmd.OutOrStdout()
	if len(topics) == 0 {
		fmt.Fprintln(w, "no topics")
		return nil
	}
	for _, t := range topics {
		marker := " "
		if t.ID == active.TopicID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s  %s  %s\n", marker, t.ID, t.CreatedAt.Format("2006-01-02 15:04"), t.Title)
	}
	return nil
}

func runTopicSwitch(cmd *cobra.Command, args []string) error {
	_, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	id := ""
	if len(args) == 1 {
		id = args[0]
	}
	eng.manager.SwitchTopic(id)
	if err := eng.persist(); err != nil {
		return err
	}
	if id == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "switched to the default conversation")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "switched to topic %s\n", id)
	return nil
}

func runTopicRemove(cmd *cobra.Command, args []string) error {
	ctx, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := eng.topics.RemoveTopic(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to remove topic: %w", err)
	}
	if err := eng.manager.RefreshTopic(ctx); err != nil {
		return err
	}
	if eng.manager.Active().TopicID == args[0] {
		eng.manager.SwitchTopic("")
		if err := eng.persist(); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed topic %s\n", args[0])
	return nil
}
