// Package gitupdater implements the git state machine: clone
// vs. update, best-remote selection, checkout-source resolution, the
// auto-stash discipline around destructive operations, and the
// commit-accounting used for the post-run summary.
package gitupdater

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kdebuilder/kdebuilder/internal/kdeerr"
)

// State is the on-disk state of a module's source directory.
type State int

const (
	Absent State = iota
	PresentWithGit
	PresentWithoutGit
)

// DetectState inspects sourceDir.
func DetectState(sourceDir string) (State, error) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return Absent, nil
		}
		return Absent, err
	}
	if len(entries) == 0 {
		return Absent, nil
	}
	if _, err := os.Stat(filepath.Join(sourceDir, ".git")); err == nil {
		return PresentWithGit, nil
	}
	return PresentWithoutGit, nil
}

// CheckoutMode is the kind of ref an Updater resolves to.
type CheckoutMode int

const (
	ModeNone CheckoutMode = iota
	ModeBranch
	ModeTag
	ModeDetached
)

// Checkout is the resolved target for clone/update.
type Checkout struct {
	Mode CheckoutMode
	Ref  string // branch name, tag name (without refs/tags/), or commit
}

// Source provides the module's resolved option values the updater
// needs, decoupling this package from internal/module.
type Source struct {
	RepoURL      string
	IsKDEProject bool
	GitUser      string // "Name <email>", or ""
	PushProtocol string // "git" or "https"

	Commit      string
	Revision    string
	Tag         string // module-level only
	Branch      string // module-level
	BranchGroup string // module-level, kde-projects only

	GlobalBranch      string
	GlobalBranchGroup string

	ResolveBranchGroup func(branchGroup string) (branch string, ok bool)
}

// ResolveCheckout implements the checkout-source priority order.
func ResolveCheckout(s Source) Checkout {
	if s.Commit != "" {
		return Checkout{Mode: ModeDetached, Ref: s.Commit}
	}
	if s.Revision != "" {
		return Checkout{Mode: ModeDetached, Ref: s.Revision}
	}
	if s.Tag != "" {
		return Checkout{Mode: ModeTag, Ref: strings.TrimPrefix(s.Tag, "refs/tags/")}
	}
	if s.Branch != "" {
		return Checkout{Mode: ModeBranch, Ref: s.Branch}
	}
	if s.IsKDEProject && s.BranchGroup != "" {
		if b, ok := resolveGroup(s, s.BranchGroup); ok {
			return Checkout{Mode: ModeBranch, Ref: b}
		}
		return Checkout{Mode: ModeBranch, Ref: "master"}
	}
	if s.GlobalBranch != "" {
		return Checkout{Mode: ModeBranch, Ref: s.GlobalBranch}
	}
	if s.IsKDEProject && s.GlobalBranchGroup != "" {
		if b, ok := resolveGroup(s, s.GlobalBranchGroup); ok {
			return Checkout{Mode: ModeBranch, Ref: b}
		}
		return Checkout{Mode: ModeBranch, Ref: "master"}
	}
	return Checkout{Mode: ModeNone}
}

func resolveGroup(s Source, group string) (string, bool) {
	if s.ResolveBranchGroup == nil {
		return "", false
	}
	return s.ResolveBranchGroup(group)
}

// Updater drives one module's git state through the run.
type Updater struct {
	Ctx        context.Context
	SourceDir  string
	ModuleName string
	Log        func(p []byte) (int, error)
}

func (u *Updater) git(args ...string) (string, error) {
	cmd := exec.CommandContext(u.Ctx, "git", args...)
	cmd.Dir = u.SourceDir
	var out strings.Builder
	cmd.Stdout = &out
	if u.Log != nil {
		cmd.Stderr = writerFunc(u.Log)
	} else {
		cmd.Stderr = &out
	}
	err := cmd.Run()
	return strings.TrimSpace(out.String()), err
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// Clone performs the Absent → clone transition.
func (u *Updater) Clone(repoURL string, checkout Checkout, gitUser string) (commits int, err error) {
	if err := os.MkdirAll(filepath.Dir(u.SourceDir), 0755); err != nil {
		return 0, kdeerr.Wrap(err, "creating parent directory for "+u.SourceDir)
	}
	args := []string{"clone", "--recursive"}
	switch checkout.Mode {
	case ModeBranch:
		args = append(args, "-b", checkout.Ref)
	case ModeTag:
		args = append(args, "-b", checkout.Ref)
	}
	args = append(args, repoURL, u.SourceDir)

	cmd := exec.CommandContext(u.Ctx, "git", args...)
	if u.Log != nil {
		cmd.Stdout = writerFunc(u.Log)
		cmd.Stderr = writerFunc(u.Log)
	}
	if err := cmd.Run(); err != nil {
		return 0, kdeerr.Wrap(err, "cloning "+repoURL)
	}

	if gitUser != "" {
		name, email, ok := parseGitUser(gitUser)
		if ok {
			u.git("config", "user.name", name)
			u.git("config", "user.email", email)
		}
	}

	out, err := u.git("ls-files")
	if err != nil {
		return 0, nil
	}
	if out == "" {
		return 0, nil
	}
	return strings.Count(out, "\n") + 1, nil
}

func parseGitUser(s string) (name, email string, ok bool) {
	m := regexp.MustCompile(`^(.*)\s+<([^>]+)>$`).FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", "", false
	}
	return strings.TrimSpace(m[1]), m[2], true
}

// BestRemote implements the best-remote selection and returns the
// remote name to fetch from.
func (u *Updater) BestRemote(repoURL string, isKDEProject bool) (string, error) {
	out, err := u.git("remote", "-v")
	if err != nil {
		return "", kdeerr.Wrap(err, "listing git remotes")
	}
	remoteURLs := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		remoteURLs[fields[0]] = fields[1]
	}

	plausible := func(name, url string) bool {
		if !isValidRemoteName(name) {
			return false
		}
		if url == repoURL {
			return true
		}
		if isKDEProject && strings.HasPrefix(url, "kde:") {
			return true
		}
		return false
	}

	best := ""
	for name, url := range remoteURLs {
		if plausible(name, url) {
			best = name
			break
		}
	}
	if best == "" {
		best = "origin"
	}

	if existingURL, ok := remoteURLs[best]; ok {
		if existingURL != repoURL {
			if _, err := u.git("remote", "set-url", best, repoURL); err != nil {
				return "", kdeerr.Wrap(err, "updating remote "+best)
			}
		}
	} else {
		if _, err := u.git("remote", "add", best, repoURL); err != nil {
			return "", kdeerr.Wrap(err, "adding remote "+best)
		}
	}

	if isKDEProject {
		u.git("config", "--unset", "remote."+best+".pushurl")
	}

	return best, nil
}

func isValidRemoteName(name string) bool {
	for _, r := range name {
		if !(r == '-' || r == '_' || r == '.' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return name != ""
}

// Update performs the Present-with-git → update transition: fetch
// then advance to checkout, wrapped in the auto-stash discipline.
func (u *Updater) Update(remote string, checkout Checkout) (commits int, warning string, err error) {
	preRef, _ := u.git("rev-parse", "HEAD")

	if _, err := u.git("fetch", remote); err != nil {
		return 0, "", kdeerr.Wrap(err, "git fetch "+remote)
	}

	stashed, stashErr := u.autoStash()
	if stashErr != nil {
		return 0, "module left alone: " + stashErr.Error(), nil
	}

	var advanceErr error
	switch checkout.Mode {
	case ModeDetached, ModeTag:
		ref := checkout.Ref
		if checkout.Mode == ModeTag {
			ref = "refs/tags/" + checkout.Ref
		}
		_, advanceErr = u.git("checkout", ref)
	case ModeBranch:
		advanceErr = u.updateToBranch(remote, checkout.Ref)
	default:
		head, _ := os.ReadFile(filepath.Join(u.SourceDir, ".git", "refs", "remotes", remote, "HEAD"))
		ref := strings.TrimSpace(string(head))
		if ref == "" {
			ref = remote + "/HEAD"
		}
		_, advanceErr = u.git("checkout", ref)
	}

	if stashed {
		if _, err := u.git("stash", "pop"); err != nil {
			warning = fmt.Sprintf("auto-stash pop conflicted for %s; inspect the stash manually", u.ModuleName)
		}
	}

	if advanceErr != nil {
		return 0, warning, kdeerr.Wrap(advanceErr, "updating "+u.ModuleName)
	}

	postRef, _ := u.git("rev-parse", "HEAD")
	commits = u.commitCount(preRef, postRef)
	return commits, warning, nil
}

func (u *Updater) updateToBranch(remote, branch string) error {
	target := remote + "/" + branch
	local := u.findLocalBranchFor(remote, branch)
	if local != "" {
		if _, err := u.git("checkout", local); err != nil {
			return err
		}
	} else {
		local = u.newLocalBranchName(branch, remote)
		if _, err := u.git("checkout", "-b", local, target); err != nil {
			return err
		}
	}
	_, err := u.git("reset", "--hard", target)
	return err
}

func (u *Updater) findLocalBranchFor(remote, branch string) string {
	out, err := u.git("branch", "--list")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimSpace(strings.TrimPrefix(line, "* "))
		if name == "" {
			continue
		}
		remoteCfg, _ := u.git("config", "branch."+name+".remote")
		mergeCfg, _ := u.git("config", "branch."+name+".merge")
		if remoteCfg == remote && mergeCfg == "refs/heads/"+branch {
			return name
		}
	}
	return ""
}

func (u *Updater) newLocalBranchName(branch, remote string) string {
	candidates := []string{branch, remote + "-" + branch, "ksdc-" + remote + "-" + branch}
	existing, _ := u.git("branch", "--list")
	for _, c := range candidates {
		if !strings.Contains(existing, c) {
			return c
		}
	}
	return candidates[len(candidates)-1]
}

// autoStash implements the stash discipline, returning whether a
// stash was actually pushed.
func (u *Updater) autoStash() (bool, error) {
	before := u.stashCount()
	_, err := u.git("stash", "push", "-u", "--quiet", "--message",
		fmt.Sprintf("kde-builder auto-stash at %s", time.Now().UTC().Format(time.RFC3339)))
	if err != nil {
		return false, err
	}
	after := u.stashCount()
	return after > before, nil
}

func (u *Updater) stashCount() int {
	out, err := u.git("stash", "list")
	if err != nil || out == "" {
		return 0
	}
	return strings.Count(out, "\n") + 1
}

func (u *Updater) commitCount(pre, post string) int {
	if pre == "" || post == "" || pre == post {
		return 0
	}
	out, err := u.git("rev-list", pre+".."+post)
	if err != nil || out == "" {
		return 0
	}
	lines := strings.Split(out, "\n")
	return len(lines)
}

// VerifyRefExists checks whether ref exists on repoURL before cloning
// ("git ls-remote --exit-code" failure mapping).
func VerifyRefExists(ctx context.Context, repoURL, ref string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-remote", "--exit-code", repoURL, ref)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok && exitErr.ExitCode() == 2 {
		return false, nil
	}
	return false, kdeerr.Wrap(err, "git ls-remote "+repoURL)
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

// EnsureGlobalAliases sets up the `kde:` URL aliasing at --global
// scope, advisory only.
func EnsureGlobalAliases(ctx context.Context, pushProtocol string) error {
	run := func(args ...string) error {
		cmd := exec.CommandContext(ctx, "git", args...)
		return cmd.Run()
	}
	if err := run("config", "--global", "url.https://invent.kde.org/.insteadOf", "kde:"); err != nil {
		return nil
	}
	pushURL := "https://invent.kde.org/"
	if pushProtocol == "git" {
		pushURL = "git@invent.kde.org:"
	}
	_ = run("config", "--global", "url."+pushURL+".pushInsteadOf", "kde:")
	return nil
}
