// Command osc-listen prints OSC messages arriving on a UDP port.
//
// It is the receiving half of a lid angle setup: point lid at this
// process to check that messages leave the machine and arrive with the
// expected address and value.
//
// Usage:
//
//	go run ./cmd/tools/osc-listen [flags]
//
// Flags:
//
//	-listen   UDP listen address (default: 127.0.0.1:8000)
//	-message  OSC address pattern to print (default: /lid)
package main

import (
	"flag"
	"log"
	"sync/atomic"

	"github.com/hypebeast/go-osc/osc"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:8000", "UDP listen address")
	message := flag.String("message", "/lid", "OSC address pattern to print")
	flag.Parse()

	var count atomic.Uint64

	dispatcher := osc.NewStandardDispatcher()
	err := dispatcher.AddMsgHandler(*message, func(msg *osc.Message) {
		log.Printf("#%d %s %v", count.Add(1), msg.Address, msg.Arguments)
	})
	if err != nil {
		log.Fatalf("Failed to register handler: %v", err)
	}

	server := &osc.Server{
		Addr:       *listen,
		Dispatcher: dispatcher,
	}

	log.Printf("Listening for OSC on udp://%s (address %s)", *listen, *message)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("OSC server failed: %v", err)
	}
}
