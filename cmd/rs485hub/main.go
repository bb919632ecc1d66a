package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"net/http"

	"github.com/golang/glog"

	"github.com/robotalks/rs485.go/pkg/link/websocket"
)

var (
	listenAddr = ":4850"
	busPath    = "/bus"
)

func init() {
	flag.StringVar(&listenAddr, "listen", listenAddr, "Listening address.")
	flag.StringVar(&busPath, "path", busPath, "HTTP path of the virtual bus.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	http.Handle(busPath, websocket.NewHub())
	glog.Infof("virtual bus at ws://%s%s", listenAddr, busPath)
	if err := http.ListenAndServe(listenAddr, nil); err != nil {
		glog.Exit(err)
	}
}
