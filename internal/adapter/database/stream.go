package database

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

const stderrTailSize = 4 << 10

// runDump runs cmd with its stdout streamed into w. Whatever the tool writes
// to stderr is kept (last few KiB only) for the returned error. secrets are
// blanked out of anything that ends up in the error text.
func runDump(ctx context.Context, cmd *exec.Cmd, w io.Writer, secrets ...string) error {
	stderr := &tailBuffer{limit: stderrTailSize}
	cmd.Stdout = w
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	line := mask(strings.Join(cmd.Args, " "), secrets...)
	tail := mask(strings.TrimSpace(stderr.String()), secrets...)

	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	if tail != "" {
		return fmt.Errorf("%s: %w: %s", line, err, tail)
	}
	return fmt.Errorf("%s: %w", line, err)
}

func mask(s string, secrets ...string) string {
	for _, secret := range secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, "******")
		}
	}
	return s
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
