package conffile

import "testing"

func TestResolveMatrix(t *testing.T) {
	cases := []struct {
		name                     string
		old, new, current        string
		policy                   Policy
		want                     Action
	}{
		{"all identical", "A", "A", "A", PolicyAsk, ActionKeep},
		{"unmodified upgrade", "A", "B", "A", PolicyAsk, ActionInstall},
		{"user modified, archive unchanged", "A", "A", "B", PolicyAsk, ActionKeep},
		{"new matches current though old differs", "A", "B", "B", PolicyAsk, ActionKeep},
		{"three-way differ, ask", "A", "B", "C", PolicyAsk, ActionPrompt},
		{"three-way differ, confold", "A", "B", "C", PolicyKeepOld, ActionKeep},
		{"three-way differ, confnew", "A", "B", "C", PolicyUseNew, ActionInstall},
		{"three-way differ, confdef", "A", "B", "C", PolicyDefault, ActionKeep},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Resolve(c.old, c.new, c.current, c.policy)
			if got.Action != c.want {
				t.Errorf("Resolve(%q,%q,%q,%v) = %v, want %v", c.old, c.new, c.current, c.policy, got.Action, c.want)
			}
		})
	}
}

func TestDistAndBackupPath(t *testing.T) {
	if got := DistPath("/etc/foo.conf"); got != "/etc/foo.conf.dpkg-dist" {
		t.Errorf("DistPath = %q", got)
	}
	if got := BackupPath("/etc/foo.conf"); got != "/etc/foo.conf.dpkg-bak" {
		t.Errorf("BackupPath = %q", got)
	}
}
