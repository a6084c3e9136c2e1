package database

import (
	"os"
	"os/exec"
	"strings"
)

// secretEnv holds credentials meant for exactly one child process. apply
// writes them into cmd.Env only: the secret lives in the child's environment
// and never in the daemon's.
type secretEnv map[string]string

func (s secretEnv) apply(cmd *exec.Cmd) {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}

	base := cmd.Env
	if base == nil {
		base = os.Environ()
	}
	env := filterEnv(base, keys)
	for k, v := range s {
		if v != "" {
			env = append(env, k+"="+v)
		}
	}
	cmd.Env = env
}

// filterEnv returns env without any entry for the given keys.
func filterEnv(env []string, keys []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		name, _, _ := strings.Cut(kv, "=")
		drop := false
		for _, k := range keys {
			if name == k {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, kv)
		}
	}
	return out
}
