package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/focus-timer/internal/agent"
	"github.com/example/focus-timer/internal/timerapi"
)

// finishPollInterval is how often run checks whether the agent went idle on
// its own (target reached or stopped elsewhere).
const finishPollInterval = 500 * time.Millisecond

type runOptions struct {
	subjectID string
	title     string
	kind      string
	target    time.Duration
	quiet     bool
}

func runCmd(c *cli) *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a timer, recovering the active session if there is one",
		Long: "Run recovers the owner's active session or starts a new one, then reads\n" +
			"commands from stdin: p (pause), r (resume), s (stop), q (detach).\n" +
			"An interrupt detaches after a final save; the session keeps running on\n" +
			"the server and is recovered by the next run.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.run(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.subjectID, "subject", "", "subject id for a new session")
	flags.StringVar(&opts.title, "title", "", "subject title (defaults to the subject id)")
	flags.StringVar(&opts.kind, "kind", timerapi.KindFocus, "FOCUS, SHORT_BREAK or LONG_BREAK")
	flags.DurationVar(&opts.target, "target", 25*time.Minute, "target duration")
	flags.BoolVar(&opts.quiet, "quiet", false, "do not print the countdown")
	return cmd
}

func (c *cli) run(ctx context.Context, opts runOptions, in io.Reader, out io.Writer) error {
	printer := &tickPrinter{out: out, quiet: opts.quiet}
	a := agent.New(c.client, c.agentOptions(printer.print))

	if err := a.Recover(ctx); err != nil {
		return err
	}
	if state := a.State(); state.Status != agent.StatusIdle {
		printer.line("recovered %s (%s elapsed)", state.SessionID, formatSeconds(state.ElapsedSeconds))
	} else {
		if opts.subjectID == "" {
			return fmt.Errorf("%w: pass --subject to start one", errNoActiveSession)
		}
		title := opts.title
		if title == "" {
			title = opts.subjectID
		}
		subject := agent.Subject{
			ID:            opts.subjectID,
			Title:         title,
			Kind:          strings.ToUpper(opts.kind),
			TargetSeconds: int(opts.target / time.Second),
		}
		if err := a.Start(ctx, subject); err != nil {
			return err
		}
		printer.line("started %s for %s", subject.Title, formatSeconds(subject.TargetSeconds))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		return a.Run(groupCtx)
	})
	group.Go(func() error {
		defer cancel()
		return interact(groupCtx, a, in, printer)
	})
	return group.Wait()
}

// interact applies stdin commands until the run ends, the user stops or
// detaches, or ctx is cancelled.
func interact(ctx context.Context, a *agent.Agent, in io.Reader, printer *tickPrinter) error {
	commands := make(chan string)
	go func() {
		defer close(commands)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case commands <- strings.TrimSpace(strings.ToLower(scanner.Text())):
			case <-ctx.Done():
				return
			}
		}
	}()

	poll := time.NewTicker(finishPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			a.VisibilityLost(context.Background())
			printer.line("detached")
			return nil
		case <-poll.C:
			if a.State().Status == agent.StatusIdle {
				printer.line("session finished")
				return nil
			}
		case command, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			done, err := apply(ctx, a, command, printer)
			if err != nil {
				printer.line("%v", err)
			}
			if done {
				return nil
			}
		}
	}
}

func apply(ctx context.Context, a *agent.Agent, command string, printer *tickPrinter) (bool, error) {
	switch command {
	case "p", "pause":
		if err := a.Pause(ctx); err != nil {
			return false, err
		}
		printer.line("paused")
	case "r", "resume":
		if err := a.Resume(ctx); err != nil {
			return false, err
		}
		printer.line("resumed")
	case "s", "stop":
		state := a.State()
		if err := a.Stop(ctx); err != nil {
			return errors.Is(err, agent.ErrNotActive), err
		}
		printer.line("stopped after %s", formatSeconds(state.ElapsedSeconds))
		return true, nil
	case "q", "quit":
		a.VisibilityLost(ctx)
		printer.line("detached")
		return true, nil
	case "":
		printer.status(a.State())
	default:
		return false, fmt.Errorf("unknown command %q", command)
	}
	return false, nil
}

type tickPrinter struct {
	mu    sync.Mutex
	out   io.Writer
	quiet bool
}

func (p *tickPrinter) print(state agent.State) {
	if p.quiet {
		return
	}
	p.status(state)
}

func (p *tickPrinter) status(state agent.State) {
	p.line("%s %s remaining", state.Status, formatSeconds(state.RemainingSeconds()))
}

func (p *tickPrinter) line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format+"\n", args...)
}
