package gormlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShortCaller(t *testing.T) {
	cases := map[string]string{
		"/Users/alex/repo/internal/platform/db/postgres.go:38": "internal/platform/db/postgres.go:38",
		"/home/ci/src/checkout/pkg/x/y.go:12":                  "pkg/x/y.go:12",
		"/a/b/c/d.go:1":                                        "b/c/d.go:1",
		"d.go:7":                                               "d.go:7",
		"":                                                     "",
	}
	for in, want := range cases {
		require.Equal(t, want, shortCaller(in), in)
	}
}
