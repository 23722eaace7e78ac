package disallow

import (
	"sort"
	"disallow/.m1p"

	"github.com/sdboyer/gps"
)

var (
	_ = sort.Strings
	_ = gps.Solve
	_ = m1p.S
)
