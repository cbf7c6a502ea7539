// Package gitutil wraps the git binary for the operations a repair run
// needs: cloning, worktree isolation, checkpoint commits, and
// authenticated pushes. It shells out to `git` directly rather than
// binding a Go git library, the way every git-touching example in the
// pack does.
package gitutil

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

type CommandError struct {
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

func runGit(dir string, args ...string) (string, string, error) {
	base := []string{
		"-C", dir,
		"-c", "maintenance.auto=0",
		"-c", "gc.auto=0",
	}
	cmd := exec.Command("git", append(base, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	outStr := stdout.String()
	errStr := stderr.String()
	if err != nil {
		return outStr, errStr, &CommandError{Args: args, Stdout: outStr, Stderr: errStr, Err: err}
	}
	return outStr, errStr, nil
}

func Clone(url, dest, branch string) error {
	args := []string{"clone"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, dest)
	// the destination doesn't exist yet, so run from "." rather than dest
	_, _, err := runGit(".", args...)
	return err
}

// ShallowClone clones at depth 1, the Scanner's default: a repair run
// never needs history, only the tip of baseBranch.
func ShallowClone(url, dest, branch string) error {
	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, dest)
	_, _, err := runGit(".", args...)
	return err
}

func IsRepo(dir string) bool {
	out, _, err := runGit(dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "true"
}

func HeadSHA(dir string) (string, error) {
	out, _, err := runGit(dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func StatusPorcelain(dir string) (string, error) {
	out, _, err := runGit(dir, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	return out, nil
}

func IsClean(dir string) (bool, error) {
	out, err := StatusPorcelain(dir)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

func CreateBranchAt(dir, branch, baseSHA string) error {
	_, _, err := runGit(dir, "branch", "--force", branch, baseSHA)
	return err
}

func CheckoutNewOrExisting(dir, branch string) error {
	if _, _, err := runGit(dir, "switch", branch); err == nil {
		return nil
	}
	_, _, err := runGit(dir, "switch", "-c", branch)
	return err
}

func AddWorktree(repoDir, worktreeDir, branch string) error {
	_, _, err := runGit(repoDir, "worktree", "add", worktreeDir, branch)
	return err
}

func RemoveWorktree(repoDir, worktreeDir string) error {
	_, _, err := runGit(repoDir, "worktree", "remove", "--force", worktreeDir)
	return err
}

func AddAll(dir string) error {
	_, _, err := runGit(dir, "add", "-A")
	return err
}

// EnsureIdentity sets a repo-local committer identity if one isn't
// already configured, mirroring the original implementation's
// config_writer("repository") step rather than touching global git
// config.
func EnsureIdentity(dir string) error {
	name, _, _ := runGit(dir, "config", "--get", "user.name")
	email, _, _ := runGit(dir, "config", "--get", "user.email")
	if strings.TrimSpace(name) == "" {
		if _, _, err := runGit(dir, "config", "user.name", "healer-agent"); err != nil {
			return err
		}
	}
	if strings.TrimSpace(email) == "" {
		if _, _, err := runGit(dir, "config", "user.email", "healer-agent@local"); err != nil {
			return err
		}
	}
	return nil
}

// Commit stages everything and commits with the given message. It
// returns the resulting commit SHA.
func Commit(dir, message string) (string, error) {
	if err := AddAll(dir); err != nil {
		return "", err
	}
	if _, _, err := runGit(dir, "commit", "--allow-empty", "-m", message); err != nil {
		return "", err
	}
	return HeadSHA(dir)
}

// RemoteURL reads the configured URL for a remote.
func RemoteURL(dir, remote string) (string, error) {
	out, _, err := runGit(dir, "remote", "get-url", remote)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// SetRemoteURL rewrites a remote's URL.
func SetRemoteURL(dir, remote, url string) error {
	_, _, err := runGit(dir, "remote", "set-url", remote, url)
	return err
}

// PushRejected is returned when ForcePush's output indicates the remote
// rejected the update (as opposed to a local/transport failure).
type PushRejected struct {
	Detail string
}

func (e *PushRejected) Error() string {
	return "push rejected by remote: " + e.Detail
}

var pushRejectFlags = []string{"[rejected]", "[remote rejected]", "! [remote rejected]", "error:", "[remote failure]"}

// ForcePush force-pushes branch to remote and inspects the output for the
// rejection flags the original implementation checks
// (REJECTED|REMOTE_REJECTED|ERROR|REMOTE_FAILURE).
func ForcePush(dir, remote, branch string) error {
	stdout, stderr, err := runGit(dir, "push", "--force", remote, branch)
	combined := strings.ToLower(stdout + "\n" + stderr)
	for _, flag := range pushRejectFlags {
		if strings.Contains(combined, strings.ToLower(flag)) {
			return &PushRejected{Detail: strings.TrimSpace(stderr)}
		}
	}
	return err
}

func DiffNameOnly(dir, baseRef string) ([]string, error) {
	out, _, err := runGit(dir, "diff", "--name-only", baseRef)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			files = append(files, trimmed)
		}
	}
	return files, nil
}
