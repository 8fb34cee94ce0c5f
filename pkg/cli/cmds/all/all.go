// Package all registers all shell commands.
package all

import (
	// commands
	_ "github.com/robotalks/suoserial/pkg/cli/cmds/device"
	_ "github.com/robotalks/suoserial/pkg/cli/cmds/update"
)
