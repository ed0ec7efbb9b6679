package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/events"
)

func newWatchCmd(g *globalOptions) *cobra.Command {
	var kinds []string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print live change events",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.connect(cmd)
			if err != nil {
				return err
			}
			u, err := streamURL(c.base, c.token, kinds)
			if err != nil {
				return err
			}
			dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
			conn, _, err := dialer.DialContext(cmd.Context(), u, nil)
			if err != nil {
				return fmt.Errorf("websocket connect: %w", err)
			}
			defer conn.Close()
			go func() {
				<-cmd.Context().Done()
				conn.Close()
			}()

			log.WithField("kinds", kinds).Info("Watching for changes")
			for {
				var e events.Event
				if err := conn.ReadJSON(&e); err != nil {
					if cmd.Context().Err() != nil || websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						return nil
					}
					return fmt.Errorf("read event: %w", err)
				}
				log.WithFields(log.Fields{
					"kind":     e.Kind,
					"document": e.DocumentID,
					"actor":    e.Actor,
				}).Info("Change")
			}
		},
	}
	cmd.Flags().StringSliceVarP(&kinds, "kinds", "k", nil, "event kinds to follow, e.g. job.updated,inventory.updated")
	return cmd
}

// streamURL turns the API base into the WebSocket stream address. The token
// travels as a query parameter because the upgrade carries no headers.
func streamURL(base, token string, kinds []string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/stream"
	q := url.Values{}
	q.Set("token", token)
	if len(kinds) > 0 {
		q.Set("kinds", strings.Join(kinds, ","))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
