package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	URL string
}

// NewWatchCommand follows the identity stream of a running server and prints
// each change, as a stand-in for the kiosk screen.
func NewWatchCommand(root *RootOptions) *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print identity updates from a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			endpoint := opts.URL
			if endpoint == "" {
				cfg, err := root.load()
				if err != nil {
					return err
				}
				endpoint = streamURL(cfg.HTTPAddr)
			}
			return watch(cmd.Context(), endpoint, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "identity stream URL (default derived from http_addr)")

	return cmd
}

func watch(ctx context.Context, endpoint string, out io.Writer) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", endpoint, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	color.New(color.FgCyan).Fprintf(out, "watching %s\n", endpoint)
	for {
		var snap service.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read identity stream: %w", err)
		}
		printSnapshot(out, snap)
	}
}

func printSnapshot(out io.Writer, snap service.Snapshot) {
	stamp := snap.UpdatedAt.Local().Format("15:04:05")
	switch {
	case snap.Valid == nil:
		color.New(color.Faint).Fprintf(out, "[%s] (screen cleared)\n", stamp)
	case !*snap.Valid:
		color.New(color.FgRed).Fprintf(out, "[%s] ✗ rejected: %s\n", stamp, snap.Reason)
	case snap.Identity != nil:
		id := snap.Identity
		color.New(color.FgGreen).Fprintf(out, "[%s] ✓ welcome %s (#%d)", stamp, id.DisplayName, id.SubjectID)
		fmt.Fprintf(out, "  visits=%d", id.AttendanceCount)
		if id.MembershipEnd != nil {
			fmt.Fprintf(out, "  until=%s", id.MembershipEnd.Local().Format("2006-01-02"))
		}
		if id.Remark != "" {
			fmt.Fprintf(out, "  note=%q", id.Remark)
		}
		fmt.Fprintln(out)
	}
}

// streamURL turns a listen address such as ":8080" into a dialable
// websocket URL.
func streamURL(httpAddr string) string {
	host, port, err := net.SplitHostPort(httpAddr)
	if err != nil {
		host, port = strings.TrimSpace(httpAddr), "80"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, port), Path: "/v1/identity/stream"}
	return u.String()
}
