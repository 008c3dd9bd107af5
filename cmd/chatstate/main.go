// chatstate: inspect and edit chat conversations from the terminal.
package main

import "github.com/contenox/chatstate/internal/chatcli"

func main() {
	chatcli.Main()
}
