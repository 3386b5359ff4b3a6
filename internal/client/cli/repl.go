package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. App satisfies it.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	Rename(ctx context.Context) error
	Upload(ctx context.Context, args []string) error
	List(ctx context.Context) error
	Mine(ctx context.Context) error
	Get(ctx context.Context, args []string) error
}

// runREPL reads commands from reader and dispatches them to a until EOF or
// "exit"/"quit".
//
//	Not logged in:  help, register, login, exit
//	Logged in:      help, upload <path> [public|private], list, mine,
//	                get <handle>, passwd, rename, logout, exit
//
// Command errors are printed and the loop continues. Commands that prompt
// read from the same reader, so it must not be wrapped in another buffer.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("picshare %s> ", statusFn()))
		line, rerr := reader.ReadString('\n')
		if rerr != nil && (!errors.Is(rerr, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: upload <path> [public|private], (l)ist, mine, get <handle>, passwd, rename, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "passwd":
			err = a.ChangePassword(ctx)

		case "rename":
			err = a.Rename(ctx)

		case "upload":
			if len(args) == 0 {
				printlnFn("Usage: upload <path> [public|private]")
				continue
			}
			err = a.Upload(ctx, args)

		case "l", "list":
			err = a.List(ctx)

		case "mine":
			err = a.Mine(ctx)

		case "get":
			if len(args) == 0 {
				printlnFn("Usage: get <handle>")
				continue
			}
			err = a.Get(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
