// cameraview-watch - follow a running cameraview daemon
//
// Prints controller events and saves every picture taken to a directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-cameraview/pkg/web"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "cameraview host:port")
	outDir := flag.String("out", ".", "Directory for saved pictures")
	shoot := flag.Bool("capture", false, "Request one picture after connecting")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("❌ Output directory: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	events, _, err := dialer.DialContext(ctx, fmt.Sprintf("ws://%s/ws/events", *addr), nil)
	if err != nil {
		log.Fatalf("❌ Failed to connect to events: %v", err)
	}
	pictures, _, err := dialer.DialContext(ctx, fmt.Sprintf("ws://%s/ws/pictures", *addr), nil)
	if err != nil {
		events.Close()
		log.Fatalf("❌ Failed to connect to pictures: %v", err)
	}
	fmt.Printf("👀 Watching %s (pictures -> %s)\n", *addr, *outDir)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		watchEvents(events)
	}()
	go func() {
		defer wg.Done()
		savePictures(pictures, *outDir)
	}()

	if *shoot {
		if err := requestCapture(*addr); err != nil {
			log.Printf("⚠️  Capture request failed: %v", err)
		}
	}

	<-ctx.Done()
	fmt.Println("\n👋 Stopping")
	for _, ws := range []*websocket.Conn{events, pictures} {
		ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		ws.Close()
	}
	wg.Wait()
}

func watchEvents(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var e web.Event
		if err := json.Unmarshal(data, &e); err != nil {
			log.Printf("⚠️  Bad event: %v", err)
			continue
		}
		fmt.Println(formatEvent(e))
	}
}

func formatEvent(e web.Event) string {
	line := fmt.Sprintf("%s  %-18s", e.Time.Local().Format("15:04:05.000"), e.Type)
	switch {
	case e.Error != "":
		line += "  " + e.Error
	case e.X != nil && e.Y != nil:
		line += fmt.Sprintf("  (%.0f, %.0f)", *e.X, *e.Y)
	case e.Bytes > 0:
		line += fmt.Sprintf("  %d KB", e.Bytes/1024)
	}
	return line
}

func savePictures(ws *websocket.Conn, dir string) {
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		name := filepath.Join(dir, fmt.Sprintf("picture_%s.jpg", time.Now().Format("20060102_150405.000")))
		if err := os.WriteFile(name, data, 0o644); err != nil {
			log.Printf("⚠️  Save failed: %v", err)
			continue
		}
		fmt.Printf("💾 Saved %s\n", name)
	}
}

func requestCapture(addr string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(fmt.Sprintf("http://%s/api/capture", addr), "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("status %s", resp.Status)
	}
	return nil
}
