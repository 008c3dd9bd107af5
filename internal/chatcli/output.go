// output.go holds CLI output helpers.
package chatcli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/contenox/chatstate/chattypes"
	"github.com/spf13/cobra"
)

const previewLen = 72

func printMessages(cmd *cobra.Command, msgs []chattypes.Message) error {
	w := cmd.OutOrStdout()
	if raw, _ := cmd.Root().PersistentFlags().GetBool("raw"); raw {
		return printJSON(w, msgs)
	}
	if len(msgs) == 0 {
		fmt.Fprintln(w, "no messages")
		return nil
	}
	writeTree(w, msgs, 0)
	return nil
}

// printLast prints the newest top-level message.
func printLast(cmd *cobra.Command, msgs []chattypes.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return printMessages(cmd, msgs[len(msgs)-1:])
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTree(w io.Writer, msgs []chattypes.Message, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, m := range msgs {
		fmt.Fprintf(w, "%s%s  [%s]  %s\n", indent, m.ID, m.Role, preview(m.Content))
		for _, t := range m.Tools {
			status := "pending"
			if t.Result != nil {
				status = "done"
			}
			fmt.Fprintf(w, "%s    tool %s %s (%s)\n", indent, t.ID, t.APIName, status)
		}
		if m.Error != nil {
			fmt.Fprintf(w, "%s    error %s: %s\n", indent, m.Error.Type, m.Error.Message)
		}
		writeTree(w, m.Children, depth+1)
	}
}

// preview flattens content to a single line of at most previewLen runes.
func preview(content string) string {
	s := strings.Join(strings.Fields(content), " ")
	r := []rune(s)
	if len(r) > previewLen {
		return string(r[:previewLen-1]) + "…"
	}
	return s
}
