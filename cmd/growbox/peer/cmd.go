// Package peer is developer console acting as growbox server.
// Device lines are printed, typed lines are sent to device.
package peer

import (
	"context"
	"net"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/growbox/cmd/growbox/subcmd"
	"github.com/temoto/growbox/config"
	"github.com/temoto/growbox/helpers/cli"
	"github.com/temoto/growbox/link"
	"github.com/temoto/growbox/log2"
	"github.com/temoto/growbox/protocol"
)

const modName = "peer"

var Mod = subcmd.Mod{Name: modName, Usage: "console pretending to be server at link.url", Main: Main}

func Main(ctx context.Context, config *config.Config) error {
	log := subcmd.GetLog(ctx)
	e, err := link.ParseURL(config.Link.URL)
	if err != nil {
		return err
	}
	p := New(log, true)
	defer p.Close()

	switch e.Scheme {
	case "tcp":
		_, port, _ := net.SplitHostPort(e.Target)
		ln, err := net.Listen("tcp", ":"+port)
		if err != nil {
			return errors.Annotatef(err, "peer listen port=%s", port)
		}
		defer ln.Close()
		log.Infof("peer listen=%s", ln.Addr())
		go acceptLoop(log, ln, p)

	default:
		rw, err := link.Dial(ctx, e, 0)
		if err != nil {
			return errors.Annotatef(err, "peer open %s", e)
		}
		log.Infof("peer open %s", e)
		go func() {
			if err := p.Serve(rw); err != nil {
				log.Error(err)
			}
		}()
	}

	cli.MainLoop(modName, newExecutor(log, p), newCompleter())
	return nil
}

func acceptLoop(log *log2.Log, ln net.Listener, p *Peer) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Debugf("peer accept err=%v", err)
			return
		}
		log.Infof("peer accepted remote=%s", conn.RemoteAddr())
		go func() {
			if err := p.Serve(conn); err != nil {
				log.Error(err)
			}
			log.Infof("peer closed remote=%s", conn.RemoteAddr())
		}()
	}
}

func newCompleter() func(d prompt.Document) []prompt.Suggest {
	suggests := []prompt.Suggest{
		{Text: protocol.CommandLightOn.String()},
		{Text: protocol.CommandLightOff.String()},
		{Text: protocol.CommandHumOn.String()},
		{Text: protocol.CommandHumOff.String()},
		{Text: protocol.CommandFanOn.String()},
		{Text: protocol.CommandFanOff.String()},
		{Text: protocol.CommandMacAck.String()},
		{Text: ":auto", Description: "on|off automatic MAC_ACK"},
		{Text: ":stat", Description: "traffic counters"},
	}
	return func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
	}
}

func newExecutor(log *log2.Log, p *Peer) func(string) {
	return func(line string) {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, ":auto"):
			arg := strings.TrimSpace(strings.TrimPrefix(line, ":auto"))
			p.Lock()
			p.AutoAck = arg != "off"
			p.Unlock()
			log.Infof("auto ack=%t", arg != "off")
		case line == ":stat":
			log.Infof("stat=%s identity=%s", p.Stat().String(), p.Identity())
		default:
			if err := p.Send(line); err != nil {
				log.Errorf("send err=%v", err)
			}
		}
	}
}
