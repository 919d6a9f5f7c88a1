package main

import (
	"context"
	"os"

	"github.com/kdebuilder/kdebuilder/internal/module"
	"github.com/kdebuilder/kdebuilder/internal/procexec"
)

// runStartProgram implements --run/--start-program: execute a
// program with the build context's queued environment applied on top
// of the inherited one, connected to this process's own stdio.
func runStartProgram(ctx context.Context, program string, args []string, bctx *module.Context) error {
	env := module.Environ(os.Environ(), bctx.EnvQueue)
	argv := append([]string{program}, args...)
	_, err := procexec.Run(ctx, argv, procexec.Options{Env: env, Log: os.Stdout})
	return err
}
