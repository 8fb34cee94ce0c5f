// Package update exposes the firmware update commands.
package update

import (
	"context"
	"fmt"
	"io/ioutil"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/suoserial/pkg/cli/sh"
	"github.com/robotalks/suoserial/pkg/host"
	"github.com/robotalks/suoserial/pkg/suota"
)

// PackFile builds an image of the given version from a firmware binary.
func PackFile(version, in, out string, ts time.Time) (*suota.Header, error) {
	payload, err := ioutil.ReadFile(in)
	if err != nil {
		return nil, err
	}
	img, err := suota.BuildImage(version, payload, ts)
	if err != nil {
		return nil, err
	}
	if err := ioutil.WriteFile(out, img, 0644); err != nil {
		return nil, err
	}
	return suota.ParseHeader(img)
}

// inUpdate runs fn in the update sub-protocol, leaving it afterwards
// unless it was already active.
func inUpdate(ctx context.Context, client *host.Client, fn func() error) error {
	if client.InUpdate() {
		return fn()
	}
	if err := client.EnterUpdate(ctx); err != nil {
		return err
	}
	err := fn()
	if exitErr := client.ExitUpdate(ctx); err == nil {
		err = exitErr
	}
	return err
}

var (
	// UpdateCmd transfers and commits an image.
	UpdateCmd = ishell.Cmd{
		Name:    "update",
		Aliases: []string{"u"},
		Help:    "IMAGE [BANK]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("IMAGE required"))
				return
			}
			img, err := ioutil.ReadFile(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			hdr, err := suota.ParseHeader(img)
			if err != nil {
				c.Err(err)
				return
			}
			opts := host.UpdateOptions{}
			if len(c.Args) > 1 {
				bank, err := strconv.ParseUint(c.Args[1], 10, 8)
				if err != nil {
					c.Err(fmt.Errorf("Invalid BANK: %v", err))
					return
				}
				opts.Bank = byte(bank)
			}
			if sh.ShellFrom(c).Interactive {
				c.Printf("Updating to %s, %d bytes\n", hdr.Version, len(img))
				bar := c.ProgressBar()
				bar.Start()
				opts.Progress = func(sent, total int) {
					bar.Progress(sent * 100 / total)
				}
				defer bar.Stop()
			}
			if err := sh.ClientFrom(c).Update(context.Background(), img, opts); err != nil {
				c.Err(err)
				return
			}
			sh.Output(c, "OK")
		}),
	}

	// StatusCmd reads the update status.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			ctx, client := context.Background(), sh.ClientFrom(c)
			var status uint32
			err := inUpdate(ctx, client, func() (err error) {
				status, err = client.ReadStatus(ctx)
				return
			})
			if err != nil {
				c.Err(err)
				return
			}
			sh.Output(c, suota.Status(status).String())
		}),
	}

	// MemInfoCmd reads the received image size.
	MemInfoCmd = ishell.Cmd{
		Name:    "meminfo",
		Aliases: []string{"mi"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			ctx, client := context.Background(), sh.ClientFrom(c)
			var n uint32
			err := inUpdate(ctx, client, func() (err error) {
				n, err = client.ReadMemInfo(ctx)
				return
			})
			if err != nil {
				c.Err(err)
				return
			}
			sh.Output(c, n)
		}),
	}

	// PackCmd builds an image file.
	PackCmd = ishell.Cmd{
		Name: "pack",
		Help: "VERSION FIRMWARE IMAGE",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 3 {
				c.Err(fmt.Errorf("VERSION FIRMWARE IMAGE required"))
				return
			}
			hdr, err := PackFile(c.Args[0], c.Args[1], c.Args[2], time.Now())
			if err != nil {
				c.Err(err)
				return
			}
			sh.Output(c, fmt.Sprintf("%s: version %s, %d bytes, crc %08x", c.Args[2], hdr.Version, hdr.Size, hdr.CRC))
		},
	}
)

func init() {
	sh.AddCmds(
		&UpdateCmd,
		&StatusCmd,
		&MemInfoCmd,
		&PackCmd,
	)
}
