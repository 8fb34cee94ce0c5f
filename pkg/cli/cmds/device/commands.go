// Package device exposes the top-level device commands.
package device

import (
	"context"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/suoserial/pkg/cli/sh"
	"github.com/robotalks/suoserial/pkg/suoserial"
)

var (
	// BufSizeCmd queries the buffer size.
	BufSizeCmd = ishell.Cmd{
		Name:    "bufsz",
		Aliases: []string{"bs"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			n, err := sh.ClientFrom(c).BufferSize(context.Background())
			if err != nil {
				c.Err(err)
				return
			}
			sh.Output(c, n)
		}),
	}

	// AllocCmd allocates the work buffer.
	AllocCmd = ishell.Cmd{
		Name: "alloc",
		Help: "SIZE",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("SIZE required"))
				return
			}
			size, err := strconv.Atoi(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("Invalid SIZE: %v", err))
				return
			}
			if err := sh.ClientFrom(c).Alloc(context.Background(), size); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// ParamsCmd dumps the parameter partition.
	ParamsCmd = ishell.Cmd{
		Name:    "params",
		Aliases: []string{suoserial.CmdReadParam},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			data, err := sh.ClientFrom(c).ReadParams(context.Background())
			if err != nil {
				c.Err(err)
				return
			}
			if sh.ShellFrom(c).OutputJSON {
				sh.Output(c, data)
				return
			}
			for off := 0; off < len(data); off += 16 {
				end := off + 16
				if end > len(data) {
					end = len(data)
				}
				c.Printf("%04x  % x\n", off, data[off:end])
			}
		}),
	}
)

func init() {
	sh.AddCmds(
		&BufSizeCmd,
		&AllocCmd,
		&ParamsCmd,
	)
}
