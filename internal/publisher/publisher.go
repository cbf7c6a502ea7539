// Package publisher commits applied fixes and pushes the healing branch,
// guarding protected branches and restoring any injected push credential
// unconditionally.
package publisher

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/forgeline/healer/internal/gitutil"
	"github.com/forgeline/healer/internal/model"
)

// protectedBranches mirrors the original implementation's guard: these
// branch names (case-insensitive) can never be pushed to directly by a
// repair run.
var protectedBranches = map[string]bool{
	"main": true, "master": true, "develop": true, "release": true,
}

// IsProtected reports whether branch is one the publisher refuses to
// push to.
func IsProtected(branch string) bool {
	return protectedBranches[strings.ToLower(branch)]
}

// Result is the outcome of one Publish call.
type Result struct {
	Pushed        bool
	CommitSHA     string
	CommitMessage string
	Quarantined   bool
	Error         string
}

// Publish commits every applied-but-uncommitted fix in one batch, force-
// pushes the healing branch, and annotates each fix with its resulting
// commit SHA and per-fix commit message. If branch is protected, it
// refuses before touching git at all. If there is nothing to commit, it
// returns a no-op success (Pushed=false, no error) — matching the
// original's "no applied fixes without a commit_sha" short-circuit.
func Publish(repoDir, remote, branch string, run *model.Run, fixes []model.FixRecord, iteration int) (Result, []model.FixRecord, error) {
	if IsProtected(branch) {
		return Result{Quarantined: true, Error: fmt.Sprintf("BLOCKED: Refusing to push to protected branch '%s'", branch)}, fixes, nil
	}

	var pending []int
	for i, f := range fixes {
		if f.Status == model.FixApplied && f.CommitSHA == "" {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return Result{Pushed: false}, fixes, nil
	}

	if err := gitutil.EnsureIdentity(repoDir); err != nil {
		return Result{}, fixes, fmt.Errorf("ensure git identity: %w", err)
	}

	bugTypes := map[string]bool{}
	for _, i := range pending {
		bugTypes[string(fixes[i].BugType)] = true
	}
	sortedTypes := make([]string, 0, len(bugTypes))
	for bt := range bugTypes {
		sortedTypes = append(sortedTypes, bt)
	}
	sort.Strings(sortedTypes)

	message := fmt.Sprintf("[AI-AGENT] Fix %d issue(s): %s (iter %d)", len(pending), strings.Join(sortedTypes, ","), iteration)

	sha, commitErr := gitutil.Commit(repoDir, message)
	if commitErr != nil {
		errMsg := fmt.Sprintf("commit/push failed: %v", commitErr)
		for _, i := range pending {
			fixes[i].Status = model.FixFailed
			fixes[i].ErrorMessage = errMsg
		}
		return Result{Error: errMsg}, fixes, nil
	}

	pushErr := pushWithInjectedAuth(repoDir, remote, branch)
	if pushErr != nil {
		errMsg := fmt.Sprintf("commit/push failed: %v", pushErr)
		for _, i := range pending {
			fixes[i].Status = model.FixFailed
			fixes[i].ErrorMessage = errMsg
		}
		return Result{Error: errMsg}, fixes, nil
	}

	for _, i := range pending {
		fixes[i].CommitSHA = sha
		desc := fixes[i].Description
		if len(desc) > 80 {
			desc = desc[:80]
		}
		fixes[i].CommitMessage = fmt.Sprintf("[AI-AGENT] Fix %s: %s", fixes[i].BugType, desc)
	}
	run.TotalCommits++

	return Result{Pushed: true, CommitSHA: sha, CommitMessage: message}, fixes, nil
}

// PushWithAuth is pushWithInjectedAuth exported for callers outside this
// package that also need to push the healing branch under the same
// auth-injection/restore discipline — the Bootstrap step, which commits a
// CI workflow file directly rather than through Publish.
func PushWithAuth(repoDir, remote, branch string) error {
	return pushWithInjectedAuth(repoDir, remote, branch)
}

// pushWithInjectedAuth injects a GITHUB_TOKEN into the remote's URL for
// the duration of the push, then restores the original URL unconditionally
// — even if the push itself fails — the way the original's commit_push.py
// _do_commit wraps its push in try/finally.
func pushWithInjectedAuth(repoDir, remote, branch string) (err error) {
	original, urlErr := gitutil.RemoteURL(repoDir, remote)
	if urlErr != nil {
		return fmt.Errorf("read remote url: %w", urlErr)
	}

	authed, injected := authRemoteURL(original)
	if injected {
		if err := gitutil.SetRemoteURL(repoDir, remote, authed); err != nil {
			return fmt.Errorf("inject auth into remote url: %w", err)
		}
		defer func() {
			_ = gitutil.SetRemoteURL(repoDir, remote, original)
		}()
	}

	return gitutil.ForcePush(repoDir, remote, branch)
}

// authRemoteURL injects GITHUB_TOKEN as an x-access-token userinfo
// segment into an https:// remote URL that doesn't already carry
// credentials. Non-https remotes (ssh, git://) and URLs that already
// have userinfo are returned unchanged.
func authRemoteURL(remote string) (string, bool) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return remote, false
	}
	u, err := url.Parse(remote)
	if err != nil || u.Scheme != "https" {
		return remote, false
	}
	if u.User != nil {
		return remote, false
	}
	u.User = url.UserPassword("x-access-token", token)
	return u.String(), true
}
