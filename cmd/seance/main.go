// Package main - seance
// Operator tool for poking the haunting from the outside: force a
// stage, corrupt the save, wipe everything, or just watch the state.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	addr := flag.String("addr", "http://localhost:8666", "console server base URL")
	stage := flag.Int("stage", -1, "force possession stage 0-4")
	clear := flag.Bool("clear", false, "clear a forced stage override")
	corrupt := flag.Bool("corrupt", false, "corrupt the saved record in place")
	reset := flag.Bool("reset", false, "full reset: save, decoys, live state")
	overlay := flag.Bool("overlay", false, "toggle the debug overlay on clients")
	show := flag.Bool("state", false, "print the current haunting state")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	ran := false
	if *stage >= 0 {
		post(client, *addr+"/debug/stage", map[string]interface{}{"stage": *stage})
		ran = true
	}
	if *clear {
		post(client, *addr+"/debug/stage", map[string]interface{}{"clear": true})
		ran = true
	}
	if *corrupt {
		post(client, *addr+"/debug/corrupt", nil)
		ran = true
	}
	if *reset {
		fmt.Println("Breaking the circle. Everything it learned will be gone.")
		post(client, *addr+"/debug/reset", nil)
		ran = true
	}
	if *overlay {
		post(client, *addr+"/debug/overlay", nil)
		ran = true
	}
	if *show || !ran {
		get(client, *addr+"/debug/state")
	}
}

func post(client *http.Client, url string, body interface{}) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			fail("encode request: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	resp, err := client.Post(url, "application/json", reader)
	if err != nil {
		fail("%s: %v", url, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fail("%s: %s: %s", url, resp.Status, bytes.TrimSpace(out))
	}
	fmt.Printf("%s -> %s\n", url, bytes.TrimSpace(out))
}

func get(client *http.Client, url string) {
	resp, err := client.Get(url)
	if err != nil {
		fail("%s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fail("%s: %s", url, resp.Status)
	}

	var pretty bytes.Buffer
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(pretty.String())
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "seance: "+format+"\n", args...)
	os.Exit(1)
}
