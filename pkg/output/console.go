package output

import (
	"bufio"
	"io"
	"os"
	"sync"
)

// Output defines where the processed logs go.
// The entries slice is only valid for the duration of the call.
type Output interface {
	WriteBatch(entries [][]byte) error
}

// ConsoleOutput writes entries to a writer, one per line.
type ConsoleOutput struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewConsoleOutput writes to stdout.
func NewConsoleOutput() *ConsoleOutput {
	return NewWriterOutput(os.Stdout)
}

// NewWriterOutput writes to w.
func NewWriterOutput(w io.Writer) *ConsoleOutput {
	return &ConsoleOutput{w: bufio.NewWriter(w)}
}

func (c *ConsoleOutput) WriteBatch(entries [][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range entries {
		if _, err := c.w.Write(entry); err != nil {
			return err
		}
		// Ingested lines keep their newline; datagrams usually have none.
		if len(entry) == 0 || entry[len(entry)-1] != '\n' {
			if err := c.w.WriteByte('\n'); err != nil {
				return err
			}
		}
	}
	return c.w.Flush()
}
