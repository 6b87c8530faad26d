// Package main runs a demo stream consumer: it registers interest in a
// session or staff channel, prints every event, and triggers one demo event
// so something shows up immediately.
package main

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dinestream/pkg/streamclient"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)
	token := os.Getenv("TOKEN")
	if token == "" {
		token = "r_demo:staff"
	}

	c := streamclient.New(streamclient.Config{
		Token: token,
		OnConnect: func() {
			log.Print("connected")
		},
		OnMessage: func(ev streamclient.Event) {
			log.Printf("<- %s %s", ev.Type, string(ev.Raw))
		},
		OnError: func(err error) {
			log.Printf("stream error: %v", err)
		},
		OnDisconnect: func() {
			log.Print("disconnected")
		},
	})
	c.Connect(base + "/stream/restaurant/r_demo/staff")

	// fire one order so the stream has traffic
	time.Sleep(500 * time.Millisecond)
	body := []byte(`{"orderId":"o_demo","tableId":"t_demo","tableNumber":7,"items":[{"name":"Bun Cha","quantity":1}],"totalAmount":65000}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/restaurants/r_demo/events/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if resp, err := http.DefaultClient.Do(req); err != nil {
		log.Printf("publish demo order: %v", err)
	} else {
		log.Printf("publish demo order: %s", resp.Status)
		_ = resp.Body.Close()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	c.Disconnect()
}
