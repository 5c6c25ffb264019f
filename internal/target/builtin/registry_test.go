package builtin_test

import (
	"testing"

	"ghostsync/cli/internal/target"
	_ "ghostsync/cli/internal/target/builtin"
)

func TestBuiltinTargetsRegistered(t *testing.T) {
	for _, id := range []string{"antigravity", "code"} {
		if _, ok := target.TargetRegistry.Get(id); !ok {
			t.Fatalf("expected builtin target %q registered", id)
		}
	}
}
