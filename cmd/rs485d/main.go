package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/rs485.go/pkg/bus"
	"github.com/robotalks/rs485.go/pkg/config"
	fx "github.com/robotalks/rs485.go/pkg/framework"
	"github.com/robotalks/rs485.go/pkg/gateway/mqtt"
	"github.com/robotalks/rs485.go/pkg/rs485"
)

func init() {
	config.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf, err := config.Resolve()
	if err != nil {
		glog.Exitf("config: %v", err)
	}
	b, closer := conf.MustNewBus()
	defer closer.Close()
	glog.Infof("node %s: %s address %d on %s link", conf.Node, conf.Role, conf.Address, conf.Link.Kind)

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("bus", b))

	if conf.MQTT.URL != "" {
		q, err := mqtt.NewQueueFromURL(conf.MQTT.URL)
		if err != nil {
			glog.Exitf("mqtt: %v", err)
		}
		if err := q.Connect(); err != nil {
			glog.Exitf("mqtt: %v", err)
		}
		defer q.Close()
		bridge := mqtt.NewBridge(q, b, conf.Node)
		bridge.Host, _ = os.Hostname()
		runner.Go(fx.NamedRun("bridge", bridge))
	} else if conf.EngineRole() == rs485.RoleSlave {
		runner.Go(fx.NamedRun("server", bus.NewServer(b, bus.BuiltinMux(b))))
	} else {
		glog.Warning("master without mqtt gateway, only serving the bus")
	}

	if err := runner.Wait(); err != nil {
		glog.Errorf("stopped: %v", err)
		glog.Flush()
		os.Exit(1)
	}
}
