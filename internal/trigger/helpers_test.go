package trigger

import (
	"context"
	"testing"

	"github.com/pkgctl/pkgctl/internal/admindir"
	"github.com/pkgctl/pkgctl/internal/version"
)

func mustVersion(t *testing.T, s string) version.Version {
	t.Helper()
	v, err := version.Parse(s)
	if err != nil {
		t.Fatalf("version.Parse(%q): %v", s, err)
	}
	return v
}

func admindirDirForTest() admindir.Dir {
	return admindir.Dir{Admin: "testdata-admin", Root: "/"}
}

func testContext() context.Context { return context.Background() }
