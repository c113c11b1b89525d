package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/mnemo/internal/dagger"
)

// CheckModules fails when go.mod or go.sum would change under "go mod tidy"
// or when a downloaded module no longer matches its go.sum hash.
//
// +check
func (t *Mnemo) CheckModules(ctx context.Context) (string, error) {
	ctr := t.goContainer()

	if _, err := ctr.WithExec([]string{"go", "mod", "tidy", "-diff"}).Sync(ctx); err != nil {
		var e *dagger.ExecError
		if errors.As(err, &e) {
			return "", fmt.Errorf("go.mod or go.sum are not tidy, run 'go mod tidy':\n\n%s", e.Stdout)
		}
		return "", fmt.Errorf("running go mod tidy: %w", err)
	}

	out, err := ctr.WithExec([]string{"go", "mod", "verify"}).Stdout(ctx)
	if err != nil {
		return "", fmt.Errorf("go mod verify: %w", err)
	}

	return out, nil
}
