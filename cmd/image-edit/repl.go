package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fpang/ai-image-editor/internal/history"
	"github.com/fpang/ai-image-editor/internal/operation"
	"github.com/fpang/ai-image-editor/internal/session"
)

const replHelp = `Commands:
  apply <operation>[=value]   apply an edit (e.g. apply style-transfer=watercolor)
  undo | redo                 step through history
  jump <n>                    show history entry n (0 = original)
  reset                       discard all edits
  history                     list edits
  ops                         list operations
  save                        export and exit
  quit                        exit without saving`

// repl reads commands until save or quit. It reports true when the user
// quit without saving.
func repl(ctx context.Context, ctrl *session.Controller, in io.Reader, out io.Writer) bool {
	fmt.Fprintln(out, replHelp)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return true
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch cmd, arg := fields[0], strings.Join(fields[1:], " "); cmd {
		case "apply":
			s, err := parseStep(arg, intensityFlag)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Applying %s...\n", s.op.Name())
			res := ctrl.ApplyOperation(ctx, s.op)
			if !res.Success {
				fmt.Fprintf(out, "Error: %s\n", res.Error)
				continue
			}
			fmt.Fprintf(out, "%s applied successfully\n", res.Operation)
		case "undo", "redo":
			move := ctrl.Undo
			if cmd == "redo" {
				move = ctrl.Redo
			}
			if changed, err := move(); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			} else if !changed {
				fmt.Fprintf(out, "Nothing to %s\n", cmd)
			}
			fmt.Fprintln(out, ctrl.Snapshot().Status)
		case "jump":
			n, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Fprintln(out, "Usage: jump <n>")
				continue
			}
			if err := ctrl.JumpTo(n - 1); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, ctrl.Snapshot().Status)
		case "reset":
			if err := ctrl.Reset(); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, ctrl.Snapshot().Status)
		case "history":
			printHistory(out, ctrl.Snapshot())
		case "ops":
			for _, info := range operation.Describe().Operations {
				fmt.Fprintf(out, "  %-20s %s\n", info.Name, info.Description)
			}
		case "save":
			return false
		case "quit", "exit":
			return true
		default:
			fmt.Fprintln(out, replHelp)
		}
	}
}

func printHistory(out io.Writer, snap session.Snapshot) {
	marker := func(current bool) string {
		if current {
			return "*"
		}
		return " "
	}
	fmt.Fprintf(out, "%s 0 original %s\n", marker(snap.HistoryIndex == history.OriginalIndex), snap.FileName)
	for _, item := range snap.History {
		fmt.Fprintf(out, "%s %d %s (%s)\n", marker(item.Current), item.Index+1, item.Operation, item.Timestamp.Format("15:04:05"))
	}
}
