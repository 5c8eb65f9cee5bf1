package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/studymaterials/backend/internal/models"
	"github.com/studymaterials/backend/internal/services"
)

const shellHelp = `commands:
  filter <category> <type> [class]   load materials in the background
  list                               show the current materials
  delete <id>                        delete a material
  classes <category>                 show class levels
  quit
`

// syncWriter serializes writes from background fetches and the prompt loop
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// shell runs an interactive browser. Filters load in the background and a newer
// filter makes the response of an older one irrelevant.
func (a *app) shell(ctx context.Context, args []string) error {
	out := &syncWriter{w: a.out}
	query := services.NewMaterialQuery(a.client, a.logger)

	var (
		pending sync.WaitGroup
		session *models.Session
	)
	defer pending.Wait()

	scanner := bufio.NewScanner(a.in)
	fmt.Fprint(out, shellHelp)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return nil

		case "help":
			fmt.Fprint(out, shellHelp)

		case "filter":
			if len(fields) < 3 {
				fmt.Fprintln(out, "usage: filter <category> <type> [class]")
				continue
			}
			class := ""
			if len(fields) > 3 {
				class = fields[3]
			}
			key, err := services.ParseFilterKey(fields[1], fields[2], class)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}

			pending.Add(1)
			go func() {
				defer pending.Done()
				err := query.Fetch(ctx, key)
				switch {
				case errors.Is(err, services.ErrSuperseded):
				case err != nil:
					fmt.Fprintf(out, "\nfailed to load %s %s: %v\n", key.Category, key.Kind, err)
				default:
					fmt.Fprintf(out, "\nloaded %d materials for %s\n", len(query.Materials()), describeKey(key))
				}
			}()

		case "list":
			state := query.State()
			switch state.Status {
			case services.StatusIdle:
				fmt.Fprintln(out, "no filter selected")
				continue
			case services.StatusLoading:
				fmt.Fprintln(out, "loading...")
			case services.StatusFailed:
				fmt.Fprintf(out, "last load failed: %v\n", state.Err)
			}
			printGroups(out, state.Materials)

		case "delete":
			id, err := parseIDArg(fields[1:])
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			if session == nil {
				if session, err = a.session(ctx); err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}
			}

			result := query.DeleteMaterial(ctx, session, id)
			switch {
			case result.IsAuthRequired():
				session = nil
				fmt.Fprintln(out, "session expired: sign in again")
			case result.Err != nil:
				fmt.Fprintf(out, "error: %v\n", result.Err)
			case !result.Removed:
				fmt.Fprintf(out, "material %d was already gone\n", id)
			default:
				fmt.Fprintf(out, "deleted material %d\n", id)
			}

		case "classes":
			if err := a.classesTo(out, fields[1:]); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}

		default:
			fmt.Fprintf(out, "unknown command %q, type help\n", fields[0])
		}
	}
}

func describeKey(key models.FilterKey) string {
	if key.Class == nil {
		return fmt.Sprintf("%s %s", key.Category, key.Kind)
	}
	return fmt.Sprintf("%s %s class %d", key.Category, key.Kind, *key.Class)
}
