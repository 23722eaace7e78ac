// Package conffile implements the conffile engine (spec §4.8): on upgrade,
// compare old-installed, new-from-archive, and current-on-disk content
// hashes and decide whether to keep the file on disk, install the new one,
// or defer to a policy/prompt.
//
// Grounded on the teacher's internal/fs/hash.go content-hashing helpers,
// applied here to the three-way comparison spec §4.8's decision matrix
// describes rather than to dependency-lock verification.
package conffile

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Policy is the administrator's standing decision for conffile conflicts
// that would otherwise require an interactive prompt (spec §4.8, §7:
// confold/confnew/confdef/confmiss/confask force flags).
type Policy int

const (
	// PolicyAsk prompts interactively (the default, confask).
	PolicyAsk Policy = iota
	// PolicyKeepOld always keeps the on-disk file (confold).
	PolicyKeepOld
	// PolicyUseNew always installs the new file (confnew).
	PolicyUseNew
	// PolicyDefault takes the non-interactive default: keep old if it was
	// user-modified, else install new (confdef).
	PolicyDefault
)

// Action is the decision Resolve reaches for one conffile.
type Action int

const (
	// ActionKeep leaves the on-disk file untouched.
	ActionKeep Action = iota
	// ActionInstall overwrites the on-disk file with the new content.
	ActionInstall
	// ActionPrompt means no non-interactive rule applies; the caller must
	// ask the user (view diff / keep / replace / shell), or fail under
	// --force-confmiss-less automation.
	ActionPrompt
)

func (a Action) String() string {
	switch a {
	case ActionKeep:
		return "keep"
	case ActionInstall:
		return "install"
	case ActionPrompt:
		return "prompt"
	default:
		return "unknown"
	}
}

// Hash returns the md5 digest of path's content, hex-encoded the way
// dpkg's own conffile databases key on md5 (spec §4.8).
func Hash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrapf(err, "hashing %s", path)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "hashing %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Decision carries the three hashes Resolve compared, for logging/prompt
// display alongside the chosen Action.
type Decision struct {
	Action            Action
	OldInstalled      string
	NewFromArchive    string
	CurrentOnDisk     string
	ObsoleteBackupPath string // set only when Obsolete reports a rename target
}

// Resolve implements spec §4.8's decision matrix:
//
//	old==current | new==current | new==old | action
//	------------- | ------------ | -------- | ------
//	  -           |      -       |   yes    | keep current (no change)
//	 yes          |      -       |    -     | install new
//	 no           |      -       |   yes    | keep current
//	 no           |     no       |   no     | prompt
//	  -           |    yes       |    -     | install new (identical to current)
//
// Rows are matched in the table's own order: the first applicable row
// wins, matching dpkg's own priority (an unmodified conffile is handled
// before ever looking at whether new equals old).
func Resolve(oldInstalled, newFromArchive, currentOnDisk string, policy Policy) Decision {
	d := Decision{
		OldInstalled:   oldInstalled,
		NewFromArchive: newFromArchive,
		CurrentOnDisk:  currentOnDisk,
	}

	switch {
	case newFromArchive == currentOnDisk:
		d.Action = ActionKeep // "new == current": no-op either way
	case oldInstalled == currentOnDisk:
		d.Action = ActionInstall // unmodified by the user: safe to upgrade
	case newFromArchive == oldInstalled:
		d.Action = ActionKeep // user changed it; new archive content is unchanged
	default:
		d.Action = resolveByPolicy(policy)
	}
	return d
}

// resolveByPolicy applies the standing administrator policy to the
// genuinely three-way-different case (old != current != new != old).
func resolveByPolicy(policy Policy) Action {
	switch policy {
	case PolicyKeepOld:
		return ActionKeep
	case PolicyUseNew:
		return ActionInstall
	case PolicyDefault:
		// confdef: the file was modified by the user and the new version
		// differs too - dpkg's non-interactive default keeps the user's copy.
		return ActionKeep
	default:
		return ActionPrompt
	}
}

// DistPath is where Resolve's caller should stage the new archive content
// when the decision keeps the current file, so the administrator can review
// it later (spec §4.8: "<target>.dpkg-dist").
func DistPath(path string) string { return path + ".dpkg-dist" }

// BackupPath is where an obsolete conffile (declared by the old package,
// absent from the new one) is renamed to instead of being deleted outright,
// unless policy dictates preservation (spec §4.8: "<target>.dpkg-bak").
func BackupPath(path string) string { return path + ".dpkg-bak" }
