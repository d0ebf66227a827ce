package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/growbox/cmd/growbox/peer"
	"github.com/temoto/growbox/cmd/growbox/run"
	"github.com/temoto/growbox/cmd/growbox/sensortest"
	"github.com/temoto/growbox/cmd/growbox/subcmd"
	"github.com/temoto/growbox/config"
	"github.com/temoto/growbox/log2"
)

var log = log2.NewStderr(log2.LDebug)

var modules = []subcmd.Mod{
	run.Mod,
	peer.Mod,
	sensortest.Mod,
}

func main() {
	flagset := flag.NewFlagSet("growbox", flag.ContinueOnError)
	flagConfig := flagset.String("config", "growbox.hcl", "")
	flagLevel := flagset.String("log", "debug", "error|info|debug")
	flagset.Usage = func() {
		fmt.Fprintf(flagset.Output(), "Usage: growbox [options] [command]\n\nCommands:\n%s\nOptions:\n", subcmd.Usage(modules))
		flagset.PrintDefaults()
	}
	if err := flagset.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	command := flagset.Arg(0)
	if command == "" {
		command = run.Mod.Name
	}
	mod, err := subcmd.Parse(command, modules)
	if err != nil {
		log.Fatal(err)
	}

	level, err := log2.ParseLevel(*flagLevel)
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(level)
	if subcmd.SdNotify("start") {
		// under systemd assume journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	a := alive.NewAlive()
	go func() {
		sigch := make(chan os.Signal, 1)
		signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigch
		log.Infof("received signal=%v, stopping", sig)
		a.Stop()
	}()

	cfg := config.MustReadConfig(log, config.NewOsFullReader(), *flagConfig)
	ctx := subcmd.NewContext(log, a)
	log.Debugf("starting command=%s", mod.Name)
	if err := mod.Main(ctx, cfg); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	a.Stop()
	a.Wait()
}
