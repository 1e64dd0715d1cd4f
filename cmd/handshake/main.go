// Command handshake walks through the SmugMug PIN authorization from a
// terminal and stores the resulting credentials.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/daveham/FeaturesManager/app"
	"github.com/daveham/FeaturesManager/authflow"
	"github.com/daveham/FeaturesManager/config"
	"github.com/daveham/FeaturesManager/storage"
)

func main() {
	deauthorize := flag.Bool("deauthorize", false, "forget the stored access token and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Stdin, os.Stdout, *deauthorize); err != nil {
		fmt.Fprintln(os.Stderr, "handshake:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, in io.Reader, out io.Writer, deauthorize bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	s := &session{
		runner: authflow.NewRunner(a.Flow, 1),
		in:     bufio.NewScanner(in),
		out:    out,
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = s.runner.Run(ctx) }()

	return s.handshake(ctx, a, deauthorize)
}

type session struct {
	runner *authflow.Runner
	in     *bufio.Scanner
	out    io.Writer
}

// do submits cmd and waits for its event.
func (s *session) do(ctx context.Context, cmd authflow.Command) (authflow.Snapshot, error) {
	if err := s.runner.Submit(ctx, cmd); err != nil {
		return authflow.Snapshot{}, err
	}
	select {
	case ev, ok := <-s.runner.Events():
		if !ok {
			return authflow.Snapshot{}, context.Canceled
		}
		return ev.Snapshot, ev.Err
	case <-ctx.Done():
		return authflow.Snapshot{}, ctx.Err()
	}
}

func (s *session) prompt(label string) (string, error) {
	fmt.Fprint(s.out, label)
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(s.in.Text()), nil
}

// warnPersistence reports a storage failure without stopping the handshake.
func (s *session) warnPersistence(err error) error {
	var perr *storage.PersistenceError
	if errors.As(err, &perr) {
		fmt.Fprintf(s.out, "warning: credentials were not saved (%s); you will need to authorize again next time\n", perr)
		return nil
	}
	return err
}

func (s *session) handshake(ctx context.Context, a *app.App, deauthorize bool) error {
	snap, err := s.do(ctx, authflow.LoadPersisted())
	if err = s.warnPersistence(err); err != nil {
		return err
	}

	if deauthorize {
		if _, err := s.do(ctx, authflow.Deauthorize()); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "access token removed")
		return nil
	}

	if snap.State != authflow.Authenticated {
		key, secret := a.Config.ConsumerKey, a.Config.ConsumerSecret
		if snap.Consumer != nil {
			key, secret = snap.Consumer.Key, snap.Consumer.Secret
		}
		if key == "" {
			if key, err = s.prompt("API key: "); err != nil {
				return err
			}
			if secret, err = s.prompt("API secret: "); err != nil {
				return err
			}
		}

		snap, err = s.do(ctx, authflow.SubmitConsumerCredentials(key, secret))
		if err = s.warnPersistence(err); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Open this URL, approve access, and enter the six digit code:\n\n  %s\n\n", snap.AuthorizationURL.Data)

		for snap.State != authflow.Authenticated {
			pin, err := s.prompt("Verification code: ")
			if err != nil {
				return err
			}
			snap, err = s.do(ctx, authflow.SubmitVerifierPin(pin))
			if err = s.warnPersistence(err); err != nil {
				fmt.Fprintln(s.out, err)
				if snap.State != authflow.AwaitingVerification {
					return err
				}
			}
		}
	}

	client, err := a.APIClient(ctx)
	if err != nil {
		return err
	}
	user, err := client.AuthUser(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Authorized as %v\n", user["NickName"])
	return nil
}
