package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/noah-isme/arena-go/internal/dto"
)

var watchCmd = &cobra.Command{
	Use:   "watch SESSION_ID",
	Short: "Follow a gateway session as it changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if opts.token == "" {
			return errNoToken
		}

		endpoint, err := watchURL(opts.gatewayURL, args[0], opts.token)
		if err != nil {
			return err
		}

		conn, resp, err := websocket.DefaultDialer.DialContext(cmd.Context(), endpoint, nil)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				return fmt.Errorf("session %s not found", args[0])
			}
			return fmt.Errorf("connect to gateway: %w", err)
		}
		defer conn.Close()

		go func() {
			<-cmd.Context().Done()
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		}()

		out := cmd.OutOrStdout()
		for {
			var snapshot dto.SessionResponse
			if err := conn.ReadJSON(&snapshot); err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
					fmt.Fprintln(out, "session closed")
					return nil
				}
				if cmd.Context().Err() != nil {
					return nil
				}
				return err
			}
			printRemoteSnapshot(out, snapshot)
		}
	},
}

// watchURL maps the gateway base URL onto the session websocket endpoint.
func watchURL(base, sessionID, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported gateway scheme %q", u.Scheme)
	}
	u.Path += "/api/v1/sessions/" + url.PathEscape(sessionID) + "/ws"
	u.RawQuery = url.Values{"access_token": {token}}.Encode()
	return u.String(), nil
}
