// Command docflowctl is an interactive REPL for driving a running
// docflowd over its HTTP command surface, using github.com/chzyer/
// readline for line editing and history the way the teacher's own CLI
// tooling is set up to (no direct call site survived retrieval for
// this repo's own REPL, but readline appears in the teacher's full
// dependency manifest; its New/Readline/Close lifecycle here follows
// the library's own documented usage).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/docflow/docflow/pkg/docflowclient"
)

func main() {
	addr := flag.String("addr", "http://localhost:8420", "docflowd base URL")
	apiKey := flag.String("api-key", os.Getenv("DOCFLOW_API_KEY"), "bearer token for docflowd")
	flag.Parse()

	client := docflowclient.New(*addr, *apiKey)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "docflow> ",
		HistoryFile:     historyPath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "readline init failed:", err)
		os.Exit(1)
	}
	defer rl.Close()

	var sessionID, sessionPath string

	fmt.Println("docflowctl — connected to", *addr)
	fmt.Println(`type "open <path>" to start a session, "help" for commands`)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "help":
			printHelp()
		case "exit", "quit":
			return
		case "open":
			if len(fields) < 2 {
				fmt.Println("usage: open <path>")
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			id, err := client.OpenSession(ctx, fields[1])
			cancel()
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			sessionID = id
			sessionPath = fields[1]
			fmt.Println("session:", sessionID)
		default:
			runCommand(client, sessionID, sessionPath, fields)
		}
	}
}

func runCommand(client *docflowclient.Client, sessionID, sessionPath string, fields []string) {
	if sessionID == "" {
		fmt.Println(`no open session — run "open <path>" first`)
		return
	}
	action := fields[0]
	req := docflowclient.CommandRequest{Action: action, Params: map[string]any{}}

	switch action {
	case "load":
		req.Params["path"] = sessionPath
	case "update_body":
		if len(fields) > 1 {
			req.Params["body"] = strings.Join(fields[1:], " ")
		}
	case "update_header":
		for _, kv := range fields[1:] {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				continue
			}
			if req.Params["changes"] == nil {
				req.Params["changes"] = map[string]any{}
			}
			req.Params["changes"].(map[string]any)[parts[0]] = parts[1]
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := client.Execute(ctx, sessionID, req)
	cancel()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	encoded, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(encoded))
}

func printHelp() {
	fmt.Println(`commands:
  open <path>                 start or reattach to a session
  load                        load the document from its path
  save                        write the in-memory document to disk
  update_body <text...>       replace the body
  update_header k=v [k=v...]  merge header fields
  render                      render a preview
  undo / redo                 step the undo/redo history
  exit                        quit`)
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docflowctl_history"
	}
	return home + "/.docflowctl_history"
}
