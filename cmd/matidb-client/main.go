// Command matidb-client is an interactive TCP client for a running
// matidb --server instance, speaking the line protocol of
// internal/protocol.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"matidb/internal/protocol"
)

const defaultServerAddr = "127.0.0.1:5432"

func main() {
	flag.Parse()

	addr := defaultServerAddr
	if args := flag.Args(); len(args) > 0 {
		addr = args[0]
	}

	fmt.Printf("Connecting to MatiDB server at %s...\n", addr)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "matidb-client: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Println("Connected!")

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	rl, err := readline.New("matidb> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "matidb-client: failed to initialize shell: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Println("MatiDB Client")
	fmt.Println("Type 'exit' to quit")

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Println("Goodbye!")
				return
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}

		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}

		if _, err := fmt.Fprintf(writer, "%s\n", query); err != nil {
			fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
			return
		}
		if err := writer.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
			return
		}

		resp, err := protocol.ReadResponse(reader)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
			return
		}

		switch resp.Status {
		case protocol.StatusOK:
			fmt.Println(resp.Body)
			if isExit(query) {
				return
			}
		case protocol.StatusError:
			fmt.Fprintf(os.Stderr, "Error: %s\n", resp.Body)
		}
	}
}

func isExit(query string) bool {
	switch strings.ToLower(query) {
	case "exit", "quit":
		return true
	default:
		return false
	}
}
