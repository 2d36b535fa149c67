// SPDX-License-Identifier: MPL-2.0

package hermetic

import (
	"context"

	"github.com/u-root/u-root/pkg/core"
	"github.com/u-root/u-root/pkg/core/base64"
	"github.com/u-root/u-root/pkg/core/cat"
	"github.com/u-root/u-root/pkg/core/chmod"
	"github.com/u-root/u-root/pkg/core/cp"
	"github.com/u-root/u-root/pkg/core/find"
	"github.com/u-root/u-root/pkg/core/gzip"
	"github.com/u-root/u-root/pkg/core/ls"
	"github.com/u-root/u-root/pkg/core/mkdir"
	"github.com/u-root/u-root/pkg/core/mktemp"
	"github.com/u-root/u-root/pkg/core/mv"
	"github.com/u-root/u-root/pkg/core/rm"
	"github.com/u-root/u-root/pkg/core/shasum"
	"github.com/u-root/u-root/pkg/core/tar"
	"github.com/u-root/u-root/pkg/core/touch"
)

// coreFactories maps command names to their u-root constructors. Every entry
// becomes a builtin through coreBuiltin; u-root handles its own flag parsing.
var coreFactories = map[string]func() core.Command{
	"base64": func() core.Command { return base64.New() },
	"cat":    func() core.Command { return cat.New() },
	"chmod":  func() core.Command { return chmod.New() },
	"cp":     func() core.Command { return cp.New() },
	"find":   func() core.Command { return find.New() },
	"gzip":   func() core.Command { return gzip.New() },
	"ls":     func() core.Command { return ls.New() },
	"mkdir":  func() core.Command { return mkdir.New() },
	"mktemp": func() core.Command { return mktemp.New() },
	"mv":     func() core.Command { return mv.New() },
	"rm":     func() core.Command { return rm.New() },
	"shasum": func() core.Command { return shasum.New() },
	"tar":    func() core.Command { return tar.New() },
	"touch":  func() core.Command { return touch.New() },
}

// coreBuiltin adapts a u-root core command to the builtin signature. A fresh
// command instance per call keeps builtins stateless across invocations.
func coreBuiltin(factory func() core.Command) RunFunc {
	return func(ctx context.Context, stdio *IO, args []string) error {
		cmd := factory()
		cmd.SetIO(stdio.Stdin, stdio.Stdout, stdio.Stderr)
		cmd.SetWorkingDir(stdio.Dir)
		cmd.SetLookupEnv(stdio.LookupEnv)
		return cmd.RunContext(ctx, args...)
	}
}

func defaultRegistry() *Registry {
	r := NewRegistry()
	for name, factory := range coreFactories {
		r.Register(name, coreBuiltin(factory))
	}
	registerTextUtils(r)
	return r
}
