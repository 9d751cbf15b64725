package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"

	"identityradio/backend/internal/models"
)

// console prints lines while the terminal is in raw mode, where "\n" alone
// does not return the carriage.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line := fmt.Sprintf(format, args...)
	fmt.Fprint(c.out, strings.ReplaceAll(line, "\n", "\r\n")+"\r\n")
}

// lineEditor collects a single line of input key by key.
type lineEditor struct {
	prompt string
	buf    []rune
}

// feed applies key and reports whether the line is finished. cancelled is set
// when the user pressed Esc.
func (e *lineEditor) feed(key rune) (done, cancelled bool) {
	switch {
	case key == '\r' || key == '\n':
		return true, false
	case key == 0x1b:
		return true, true
	case key == 0x7f || key == 0x08:
		if len(e.buf) > 0 {
			e.buf = e.buf[:len(e.buf)-1]
		}
	case key > 0 && unicode.IsPrint(key):
		e.buf = append(e.buf, key)
	}
	return false, false
}

func (e *lineEditor) text() string { return strings.TrimSpace(string(e.buf)) }

var reportReasons = []string{"spam", "offensive", "illegal"}

// reportReason maps a menu key to a report reason.
func reportReason(key rune) (string, bool) {
	i := int(key - '1')
	if i < 0 || i >= len(reportReasons) {
		return "", false
	}
	return reportReasons[i], true
}

// lastFromOthers returns the newest message not written by self.
func lastFromOthers(msgs []models.ChatMessage, self string) *models.ChatMessage {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].UserID != self {
			m := msgs[i]
			return &m
		}
	}
	return nil
}
