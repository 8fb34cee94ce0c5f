package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/suoserial/pkg/daemon"
	"github.com/robotalks/suoserial/pkg/env"
	fx "github.com/robotalks/suoserial/pkg/framework"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.Default()
	if err := conf.Resolve(flag.CommandLine); err != nil {
		glog.Exit(err)
	}
	d, err := daemon.New(conf)
	if err != nil {
		glog.Exit(err)
	}
	defer d.Close()
	glog.Infof("device %s, transport %s", d.Info, conf.Transport)

	runner := fx.NewRunner().HandleSignals()
	d.Reboot = runner.Stop
	if err := runner.Go(d.Runnable()).Wait(); err != nil {
		glog.Exit(err)
	}
}
