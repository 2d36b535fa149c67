// SPDX-License-Identifier: MPL-2.0

package hermetic

import (
	"context"
	"errors"
	"fmt"

	"mvdan.cc/sh/v3/interp"
)

// ExecHandler returns interpreter middleware that serves registered builtins
// before the next handler resolves external programs from PATH. A builtin
// failure becomes the command's exit status; it never falls back to a system
// binary, which would mask the failure with a second, different execution.
func (r *Registry) ExecHandler(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) == 0 {
			return next(ctx, args)
		}
		run, ok := r.Lookup(args[0])
		if !ok {
			return next(ctx, args)
		}

		hc := interp.HandlerCtx(ctx)
		stdio := &IO{
			Stdin:  hc.Stdin,
			Stdout: hc.Stdout,
			Stderr: hc.Stderr,
			Dir:    hc.Dir,
			LookupEnv: func(name string) (string, bool) {
				v := hc.Env.Get(name)
				return v.Str, v.Set
			},
		}

		err := run(ctx, stdio, args[1:])
		if err == nil {
			return nil
		}
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return status
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprintf(hc.Stderr, "%v\n", err)
		return interp.ExitStatus(1)
	}
}
