package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"glowworm/cmd"
	"glowworm/realtime"
	"glowworm/types"

	"github.com/schollz/progressbar/v3"
)

func main() {
	asciiArt := `
  ____ _
 / ___| | _____      ____      _____  _ __ _ __ ___
| |  _| |/ _ \ \ /\ / /\ \ /\ / / _ \| '__| '_ ` + "`" + ` _ \
| |_| | | (_) \ V  V /  \ V  V / (_) | |  | | | | | |
 \____|_|\___/ \_/\_/    \_/\_/ \___/|_|  |_| |_| |_|
`

	var (
		server     bool
		port       int
		watch      string
		regenerate bool
		endpoint   string
	)

	flag.BoolVar(&server, "server", false, "Start in web server mode")
	flag.IntVar(&port, "port", 8080, "Port for web server mode")
	flag.StringVar(&watch, "watch", "", "Task ID to watch for regeneration progress")
	flag.BoolVar(&regenerate, "regenerate", false, "Queue a regeneration task and watch it")
	flag.StringVar(&endpoint, "endpoint", "http://localhost:8080", "Glowworm server endpoint")
	flag.Parse()

	// Server mode takes precedence
	if server {
		cmd.StartWebServer(port)
		return
	}

	if watch == "" && !regenerate {
		flag.Usage()
		return
	}

	if watch != "" && regenerate {
		log.Fatalf("You can use only one of `watch` and `regenerate` at a time.")
	}

	fmt.Println(asciiArt)

	endpoint = strings.TrimSuffix(endpoint, "/")

	taskID := watch
	if regenerate {
		task, err := queueRegeneration(endpoint)
		if err != nil {
			log.Fatalf("Cannot queue regeneration: %s", err)
		}
		log.Printf("Queued regeneration task %s", task.ID)
		taskID = task.ID
	}

	final, err := watchTask(endpoint, taskID)
	if err != nil {
		log.Fatalf("Error: %s", err)
	}

	if final.Status == types.TaskStatusFailed {
		log.Printf("Task %s failed: %s", final.TaskID, final.ErrorMessage)
		os.Exit(1)
	}
	log.Printf("Task %s finished with status %s (%d/%d images, %d errors)",
		final.TaskID, final.Status, final.ProcessedImages, final.TotalImages, final.ErrorCount)
}

// queueRegeneration asks the server to start a new regeneration task
func queueRegeneration(endpoint string) (*types.RegenerationTask, error) {
	body := bytes.NewBufferString("{}")
	resp, err := http.Post(endpoint+"/api/regeneration", "application/json", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	var queued struct {
		Task *types.RegenerationTask `json:"task"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&queued); err != nil {
		return nil, err
	}
	if queued.Task == nil {
		return nil, fmt.Errorf("server response did not include a task")
	}
	return queued.Task, nil
}

// fetchTask reads a task's current state over REST
func fetchTask(endpoint, taskID string) (*types.RegenerationTask, error) {
	resp, err := http.Get(endpoint + "/api/regeneration/" + taskID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	var fetched struct {
		Task *types.RegenerationTask `json:"task"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		return nil, err
	}
	if fetched.Task == nil {
		return nil, fmt.Errorf("server response did not include a task")
	}
	return fetched.Task, nil
}

// watchTask follows a task's progress over the WebSocket feed until it
// reaches a terminal status, rendering a progress bar along the way
func watchTask(endpoint, taskID string) (*types.RegenerationProgress, error) {
	// A task that already finished will never push another frame
	task, err := fetchTask(endpoint, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status.IsTerminal() {
		progress := task.Progress()
		return &progress, nil
	}

	resolver, err := realtime.NewEndpointResolver(endpoint + "/api/ws")
	if err != nil {
		return nil, err
	}

	client := realtime.NewClient(resolver, realtime.Config{})
	defer client.Disconnect()

	var bar *progressbar.ProgressBar
	done := make(chan types.RegenerationProgress, 1)
	failed := make(chan error, 1)

	onMessage := func(p types.RegenerationProgress) {
		if bar == nil && p.TotalImages > 0 {
			bar = progressbar.NewOptions(p.TotalImages,
				progressbar.OptionSetDescription("Regenerating"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetPredictTime(true),
			)
		}
		if bar != nil {
			bar.Set(p.ProcessedImages)
		}
		if p.Status.IsTerminal() {
			select {
			case done <- p:
			default:
			}
		}
	}
	onError := func(err error) {
		select {
		case failed <- err:
		default:
		}
	}

	// The handshake timeout bounds each dial; the context stays live so
	// reconnect attempts keep working for long-running tasks.
	if err := client.Connect(context.Background(), taskID, onMessage, onError); err != nil {
		return nil, err
	}

	// Safety net for the window between the REST check and the
	// subscription going live: if the task finished in between, no
	// frame will ever arrive, so poll occasionally.
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case p := <-done:
			if bar != nil {
				bar.Finish()
				fmt.Println()
			}
			return &p, nil
		case err := <-failed:
			return nil, err
		case <-ticker.C:
			task, err := fetchTask(endpoint, taskID)
			if err == nil && task.Status.IsTerminal() {
				progress := task.Progress()
				return &progress, nil
			}
		}
	}
}
