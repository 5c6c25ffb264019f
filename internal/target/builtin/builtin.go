// Package builtin registers every bundled target.
package builtin

import (
	_ "ghostsync/cli/internal/target/antigravity"
	_ "ghostsync/cli/internal/target/vscode"
)
