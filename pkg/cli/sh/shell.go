// Package sh implements the interactive master shell.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/rs485.go/pkg/bus"
	"github.com/robotalks/rs485.go/pkg/config"
	"github.com/robotalks/rs485.go/pkg/rs485"
)

// Shell provides ishell backed interactive shell on a master bus.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	Timeout     time.Duration

	Shell  *ishell.Shell
	Bus    *bus.Bus
	Client *bus.Client
}

const shellKey = "$shell"

var (
	// flags

	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&SendCmd,
		&PostCmd,
		&BroadcastCmd,
		&ErrorsCmd,
		&StatusCmd,
		&ResetCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// New creates a new shell.
func New(b *bus.Bus) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     time.Second,

		Shell:  ishell.New(),
		Bus:    b,
		Client: bus.NewClient(b),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt("rs485 > ")
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Exchange runs a request and prints the response.
func (s *Shell) Exchange(c *ishell.Context, msg rs485.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	resp, err := s.Client.Do(ctx, &msg)
	if err != nil {
		c.Err(err)
		return err
	}
	if !rs485.IsResponseRequired(&msg) {
		c.Println("OK")
		return nil
	}
	return s.print(c, View(&resp))
}

func (s *Shell) print(c *ishell.Context, v interface{}) error {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return err
		}
		c.Println(string(out))
		return nil
	}
	c.Println(v)
	return nil
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func exchangeCmd(responseRequired bool) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		msg, err := ParseRequest(c.Args, responseRequired)
		if err != nil {
			c.Err(err)
			return
		}
		ShellFrom(c).Exchange(c, msg)
	}
}

// FaultView is the printable form of a drained error.
type FaultView struct {
	Code  byte   `json:"code"`
	Name  string `json:"name"`
	Class string `json:"class"`
}

// String implements fmt.Stringer.
func (v FaultView) String() string {
	return fmt.Sprintf("%3d %-10s %s", v.Code, v.Class, v.Name)
}

var (
	// SendCmd sends a request and waits for the response.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "ADDR CMD [PARAM...]: request with response",
		Func:    exchangeCmd(true),
	}

	// PostCmd sends a request without response.
	PostCmd = ishell.Cmd{
		Name:    "post",
		Aliases: []string{"p"},
		Help:    "ADDR CMD [PARAM...]: request without response",
		Func:    exchangeCmd(false),
	}

	// BroadcastCmd sends a request to all slaves.
	BroadcastCmd = ishell.Cmd{
		Name:    "bcast",
		Aliases: []string{"b"},
		Help:    "CMD [PARAM...]: broadcast",
		Func: func(c *ishell.Context) {
			msg, err := ParseRequest(append([]string{"0"}, c.Args...), false)
			if err != nil {
				c.Err(err)
				return
			}
			ShellFrom(c).Exchange(c, msg)
		},
	}

	// ErrorsCmd drains the asynchronous error queue.
	ErrorsCmd = ishell.Cmd{
		Name:    "errors",
		Aliases: []string{"e"},
		Help:    "drain queued errors, most recent first",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			codes, overflow := s.Bus.Errors().Drain()
			views := make([]FaultView, 0, len(codes))
			for _, code := range codes {
				views = append(views, FaultView{
					Code:  code,
					Name:  rs485.Code(code).String(),
					Class: rs485.Code(code).Class().String(),
				})
			}
			if s.OutputJSON {
				s.print(c, map[string]interface{}{"errors": views, "overflow": overflow})
				return
			}
			for _, v := range views {
				c.Println(v)
			}
			if overflow {
				c.Println("(overflow, older errors lost)")
			}
		},
	}

	// StatusCmd prints the bus state.
	StatusCmd = ishell.Cmd{
		Name: "status",
		Help: "print bus state",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			s.print(c, map[string]interface{}{
				"state":  s.Bus.State().String(),
				"fault":  s.Bus.Fault().String(),
				"errors": s.Bus.Errors().Len(),
			})
		},
	}

	// ResetCmd forces the bus back to idle.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "reset the protocol state machine",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Bus.Reset()
			c.Println("OK")
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf, err := config.Resolve()
	if err != nil {
		log.Fatalln(err)
	}
	if conf.EngineRole() != rs485.RoleMaster {
		log.Fatalln("the shell requires role master")
	}
	b, closer := conf.MustNewBus()
	defer closer.Close()
	go func() {
		if err := b.Run(context.Background()); err != nil {
			log.Fatalf("bus: %v", err)
		}
	}()
	New(b).Run(flag.Args()...)
}
