// Package cli drives an interactive terminal conversation against a local
// engine, standing in for the messaging transport during script authoring.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/urbangroup/botflow"
	"github.com/urbangroup/botflow/internal/tui"
	"github.com/urbangroup/botflow/pkg/script"
)

// localPhone is the pseudo phone number of the terminal user.
const localPhone = "local"

// RunInteractive loads the scripts into a fresh in-memory app and runs one
// conversation on the terminal until the session ends or stdin closes.
func RunInteractive(scripts []*script.Script, startID string, opts ...botflow.Option) error {
	app, err := botflow.New(opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, sc := range scripts {
		if err := app.Scripts.Put(ctx, sc); err != nil {
			return fmt.Errorf("load script %s: %w", sc.ID, err)
		}
	}

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	var render *tui.Renderer
	if isTTY {
		tui.PrintBanner()
		render = tui.NewRenderer()
	} else {
		render = tui.NewPlainRenderer()
	}

	sess, reply, err := app.Engine.StartSession(ctx, localPhone, startID)
	if err != nil {
		return err
	}
	if err := app.Sessions.Start(ctx, sess); err != nil {
		return err
	}
	fmt.Print(render.Reply(reply))

	in := bufio.NewScanner(os.Stdin)
	for sess.Status == script.StatusActive {
		if isTTY {
			fmt.Print("> ")
		}
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return err
			}
			fmt.Println(render.System("input closed, leaving the session open"))
			return nil
		}
		if ctx.Err() != nil {
			fmt.Println(render.System("interrupted"))
			return nil
		}
		text := strings.TrimSpace(in.Text())
		if text == "" {
			continue
		}

		sc, err := app.Scripts.Get(ctx, sess.ScriptID)
		if err != nil {
			return err
		}
		text = resolveButtonShortcut(sc, sess.Step, text)

		next, reply, err := app.Engine.HandleMessage(ctx, sess, text)
		if err != nil {
			fmt.Println(render.System("script error: " + err.Error()))
			if next != nil && next.Status == script.StatusFailed {
				_ = app.Sessions.Start(ctx, next)
				return err
			}
			continue
		}
		sess = next
		if err := app.Sessions.Start(ctx, sess); err != nil {
			return err
		}
		fmt.Print(render.Reply(reply))
	}

	fmt.Println(render.System("session " + string(sess.Status)))
	return nil
}

// resolveButtonShortcut lets the terminal user answer a choice step with
// its number. The engine itself only matches ids and titles.
func resolveButtonShortcut(sc *script.Script, stepID, text string) string {
	choice, ok := sc.FindStep(stepID).(*script.ChoiceStep)
	if !ok {
		return text
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > len(choice.Buttons) {
		return text
	}
	return choice.Buttons[n-1].ID
}
