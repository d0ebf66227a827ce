// Support sub-commands in growbox application.
// It's simple but fine so far.
package subcmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/growbox/config"
	"github.com/temoto/growbox/log2"
)

const AliveKey = "run/alive"

type Mod struct {
	Name  string
	Usage string
	Main  func(context.Context, *config.Config) error
}

func Parse(command string, modules []Mod) (*Mod, error) {
	if command == "" {
		return nil, fmt.Errorf("empty command")
	}

	var found *Mod
	for i := range modules {
		m := &modules[i]
		if m.Name == "" {
			panic(fmt.Sprintf("code error Name='' module=%#v", m))
		}
		if command == m.Name {
			found = m
			break
		}
	}
	if found == nil {
		return nil, errors.NotFoundf("command='%s'", command)
	}
	return found, nil
}

func Usage(modules []Mod) string {
	var b strings.Builder
	for _, m := range modules {
		fmt.Fprintf(&b, "  %-12s %s\n", m.Name, m.Usage)
	}
	return b.String()
}

func NewContext(log *log2.Log, a *alive.Alive) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, log2.ContextKey, log)
	ctx = context.WithValue(ctx, AliveKey, a)
	return ctx
}

func GetLog(ctx context.Context) *log2.Log {
	if log := log2.ContextValueLogger(ctx); log != nil {
		return log
	}
	panic(fmt.Sprintf("code error context['%s'] not set", log2.ContextKey))
}

func GetAlive(ctx context.Context) *alive.Alive {
	v := ctx.Value(AliveKey)
	if a, ok := v.(*alive.Alive); ok {
		return a
	}
	panic(fmt.Sprintf("code error context['%s'] expected type *alive.Alive", AliveKey))
}

// StopContext is cancelled when a stops.
func StopContext(ctx context.Context) (context.Context, context.CancelFunc) {
	a := GetAlive(ctx)
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-a.StopChan():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func SdNotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}
