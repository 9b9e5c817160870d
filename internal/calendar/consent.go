package calendar

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"net/http"
	"os"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// LocalServerAuthorizer runs the installed-app consent flow: it serves the
// redirect on a loopback port and waits for the browser to come back.
type LocalServerAuthorizer struct {
	// Prompt shows the consent URL to the operator. Defaults to stderr.
	Prompt func(authURL string)
}

type callback struct {
	code string
	err  error
}

func (a LocalServerAuthorizer) Authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for redirect: %w", err)
	}

	cfg := *conf
	cfg.RedirectURL = "http://" + ln.Addr().String() + "/"
	state := uuid.NewString()

	done := make(chan callback, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		cb := callback{code: q.Get("code")}
		if e := q.Get("error"); e != "" {
			cb.err = fmt.Errorf("consent denied: %s", e)
		} else if cb.code == "" {
			cb.err = errors.New("redirect without code")
		}

		if cb.err != nil {
			http.Error(w, cb.err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "Authorization complete, you can close this window.")
		}

		select {
		case done <- cb:
		default:
		}
	})}

	go srv.Serve(ln)
	defer srv.Close()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	log.Info("Calendar authorization required", "redirect", cfg.RedirectURL)
	prompt := a.Prompt
	if prompt == nil {
		prompt = func(u string) {
			fmt.Fprintf(os.Stderr, "Open this URL in a browser to authorize calendar access:\n%s\n", u)
		}
	}
	prompt(authURL)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case cb := <-done:
		if cb.err != nil {
			return nil, cb.err
		}
		tok, err := cfg.Exchange(ctx, cb.code)
		if err != nil {
			return nil, fmt.Errorf("exchange code: %w", err)
		}
		return tok, nil
	}
}
