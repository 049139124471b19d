// ws_client submits an async solve to a running API and prints the solve's
// event stream. Run with: go run ./scripts
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type solveEvent struct {
	Type       string         `json:"type"`
	SolutionID string         `json:"solutionId"`
	TS         string         `json:"ts"`
	Payload    map[string]any `json:"payload"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// A depot and a ring of stops around it
	stops := []map[string]any{{"ref": "depot", "lat": -23.55, "lng": -46.63, "windowStart": 0, "windowEnd": 500}}
	for i := 0; i < 12; i++ {
		dlat := 0.02 * float64(i%4-2)
		dlng := 0.02 * float64(i/4-1)
		stops = append(stops, map[string]any{
			"ref": fmt.Sprintf("s%d", i+1), "lat": -23.55 + dlat, "lng": -46.63 + dlng,
			"windowStart": 0, "windowEnd": 400, "volume": 4, "weight": 3,
		})
	}
	body, _ := json.Marshal(map[string]any{"tenantId": "t_demo", "stops": stops, "params": map[string]any{"timeLimitMs": 2000}})
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/solve?async=true", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var pending struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pending); err != nil {
		log.Fatal(err)
	}
	if pending.ID == "" {
		log.Fatalf("solve not accepted: HTTP %d", resp.StatusCode)
	}
	log.Printf("Solution ID: %s (%s)", pending.ID, pending.Status)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/solutions/" + pending.ID + "/events"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	_ = c.SetReadDeadline(time.Now().Add(30 * time.Second))
	for {
		var evt solveEvent
		if err := c.ReadJSON(&evt); err != nil {
			log.Printf("read: %v", err)
			return
		}
		log.Printf("WS <- %s: %v", evt.Type, evt.Payload)
		if evt.Type != "solve.progress" {
			return
		}
	}
}
