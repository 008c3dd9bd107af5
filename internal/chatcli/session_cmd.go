// session_cmd.go holds the session subcommand tree (switch, thread, show).
package chatcli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show or switch the active session and thread.",
	Long: `Sessions are created implicitly by sending to them.

  chatstate session show            print the active session, topic and thread
  chatstate session switch <id>     switch session; the topic and thread are reset
  chatstate session thread [id]     switch thread; no id leaves the thread`,
	SilenceUsage: true,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active session, topic and thread.",
	Args:  cobra.NoArgs,
	RunE:  runSessionShow,
}

var sessionSwitchCmd = &cobra.Command{
	Use:   "switch <id>",
	Short: "Switch the active session.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionSwitch,
}

var sessionThreadCmd = &cobra.Command{
	Use:   "thread [id]",
	Short: "Switch the active thread.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionThread,
}

func init() {
	sessionCmd.AddCommand(sessionShowCmd, sessionSwitchCmd, sessionThreadCmd)
}

func runSessionShow(cmd *cobra.Command, _ []string) error {
	_, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	active := eng.manager.Active()
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "session: %s\n", active.SessionID)
	fmt.Fprintf(w, "topic:   %s\n", orNone(active.TopicID))
	fmt.Fprintf(w, "thread:  %s\n", orNone(eng.manager.ActiveThreadID()))
	return nil
}

func runSessionSwitch(cmd *cobra.Command, args []string) error {
	_, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng.manager.SwitchSession(args[0])
	if err := eng.persist(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "switched to session %s\n", args[0])
	return nil
}

func runSessionThread(cmd *cobra.Command, args []string) error {
	_, eng, cleanup, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	id := ""
	if len(args) == 1 {
		id = args[0]
	}
	eng.manager.SwitchThread(id)
	return eng.persist()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
