package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/rs485.go/pkg/gateway/mqtt"
	"github.com/robotalks/rs485.go/pkg/gateway/pb"
)

var (
	mqttURL = "mqtt://localhost:1883/rs485/"
)

func init() {
	if val := os.Getenv("RS485_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err := q.Connect(); err != nil {
		log.Fatalln(err)
	}
	defer q.Close()

	if _, err := q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		name := topic[strings.LastIndex(topic, "/")+1:]
		switch name {
		case mqtt.TopicMeta:
			log.Printf("%s: %s", topic, string(payload))
		case mqtt.TopicFault:
			fault, err := pb.DecodeFault(payload)
			if err != nil {
				log.Printf("%s: bad fault: %v", topic, err)
				return
			}
			log.Printf("%s: %s", topic, fault.String())
		default:
			frame, err := pb.DecodeFrame(payload)
			if err != nil {
				log.Printf("%s: bad frame: %v", topic, err)
				return
			}
			log.Printf("%s: %s", topic, frame.String())
		}
	})); err != nil {
		log.Fatalln(err)
	}
	<-(chan struct{})(nil)
}
