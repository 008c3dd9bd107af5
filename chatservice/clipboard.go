package chatservice

import (
	"errors"

	"github.com/atotto/clipboard"
)

var ErrClipboardUnavailable = errors.New("chatservice: no clipboard available")

// SystemClipboard writes to the operating system clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrClipboardUnavailable
	}
	return clipboard.WriteAll(text)
}

type noClipboard struct{}

func (noClipboard) WriteAll(string) error {
	return ErrClipboardUnavailable
}
