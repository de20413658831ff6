// Package main provides the player CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/tunebox/internal/app/session"
	"github.com/osa030/tunebox/internal/domain/track"
	"github.com/osa030/tunebox/internal/domain/user"
)

var (
	app    = kingpin.New("tunebox-playercli", "tunebox player client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").Envar("TUNEBOX_SERVER").String()
	token  = app.Flag("token", "API token").Envar("TUNEBOX_TOKEN").String()

	// account commands
	signupCmd      = app.Command("signup", "Create an account and open a player session")
	signupEmail    = signupCmd.Arg("email", "Email address").Required().String()
	signupPassword = signupCmd.Arg("password", "Password").Required().String()

	loginCmd      = app.Command("login", "Log in and open a player session")
	loginEmail    = loginCmd.Arg("email", "Email address").Required().String()
	loginPassword = loginCmd.Arg("password", "Password").Required().String()

	logoutCmd = app.Command("logout", "Log out and close the player session")

	// player commands
	statusCmd   = app.Command("status", "Show the player status")
	toggleCmd   = app.Command("toggle", "Toggle play/pause")
	nextCmd     = app.Command("next", "Play the next track")
	previousCmd = app.Command("previous", "Play the previous track")

	selectCmd   = app.Command("select", "Play the track at an index")
	selectIndex = selectCmd.Arg("index", "Playlist index (0-based)").Required().Int()

	seekCmd     = app.Command("seek", "Seek within the current track")
	seekSeconds = seekCmd.Arg("seconds", "Position in seconds").Required().Float64()

	// favorites commands
	favoritesCmd       = app.Command("favorites", "Manage favorite tracks")
	favoritesListCmd   = favoritesCmd.Command("list", "List favorite tracks").Default()
	favoritesAddCmd    = favoritesCmd.Command("add", "Add a favorite track")
	favoritesAddID     = favoritesAddCmd.Arg("track-id", "Track ID").Required().String()
	favoritesRemoveCmd = favoritesCmd.Command("remove", "Remove a favorite track")
	favoritesRemoveID  = favoritesRemoveCmd.Arg("track-id", "Track ID").Required().String()

	// subscribe command
	subscribeCmd = app.Command("subscribe", "Subscribe to player events")
)

type authResponse struct {
	Token string      `json:"token"`
	User  user.Public `json:"user"`
}

type favoritesResponse struct {
	Tracks []track.Track `json:"tracks"`
	Count  int           `json:"count"`
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := newClient(*server, *token)

	var err error
	switch command {
	case signupCmd.FullCommand():
		err = authenticate(ctx, c, "/api/v1/auth/signup", *signupEmail, *signupPassword)
	case loginCmd.FullCommand():
		err = authenticate(ctx, c, "/api/v1/auth/login", *loginEmail, *loginPassword)
	case logoutCmd.FullCommand():
		if err = c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil); err == nil {
			fmt.Println("Logged out")
		}
	case statusCmd.FullCommand():
		err = playerCommand(ctx, c, http.MethodGet, "/api/v1/player", nil)
	case toggleCmd.FullCommand():
		err = playerCommand(ctx, c, http.MethodPost, "/api/v1/player/toggle", nil)
	case nextCmd.FullCommand():
		err = playerCommand(ctx, c, http.MethodPost, "/api/v1/player/next", nil)
	case previousCmd.FullCommand():
		err = playerCommand(ctx, c, http.MethodPost, "/api/v1/player/previous", nil)
	case selectCmd.FullCommand():
		err = playerCommand(ctx, c, http.MethodPost, "/api/v1/player/select", map[string]int{"index": *selectIndex})
	case seekCmd.FullCommand():
		err = playerCommand(ctx, c, http.MethodPost, "/api/v1/player/seek", map[string]float64{"seconds": *seekSeconds})
	case favoritesListCmd.FullCommand():
		err = favoritesCommand(ctx, c, http.MethodGet, "/api/v1/favorites")
	case favoritesAddCmd.FullCommand():
		err = favoritesCommand(ctx, c, http.MethodPut, "/api/v1/favorites/"+*favoritesAddID)
	case favoritesRemoveCmd.FullCommand():
		err = favoritesCommand(ctx, c, http.MethodDelete, "/api/v1/favorites/"+*favoritesRemoveID)
	case subscribeCmd.FullCommand():
		err = subscribe(ctx, c)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func authenticate(ctx context.Context, c *client, path, email, password string) error {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"email": email, "password": password}, &resp); err != nil {
		return err
	}
	fmt.Printf("Logged in as %s\n", resp.User.Email)
	fmt.Printf("export TUNEBOX_TOKEN=%s\n", resp.Token)
	return nil
}

func playerCommand(ctx context.Context, c *client, method, path string, body any) error {
	var status session.Status
	if err := c.do(ctx, method, path, body, &status); err != nil {
		return err
	}
	printStatus(status)
	return nil
}

func favoritesCommand(ctx context.Context, c *client, method, path string) error {
	var resp favoritesResponse
	if err := c.do(ctx, method, path, nil, &resp); err != nil {
		return err
	}
	fmt.Printf("Favorites (%d):\n", resp.Count)
	for _, t := range resp.Tracks {
		fmt.Printf("  %-38s %s - %s\n", t.ID, t.DisplayArtist(), t.Title)
	}
	return nil
}

func subscribe(ctx context.Context, c *client) error {
	fmt.Println("Subscribed to player events. Press Ctrl+C to exit.")
	return c.subscribe(ctx, printEvent)
}

func formatState(p session.PlayerState) string {
	switch {
	case p.Pending:
		return "⏳ Starting"
	case p.Playing:
		return "▶️  Playing"
	default:
		return "⏸  Paused"
	}
}

func printStatus(s session.Status) {
	fmt.Printf("User: %s\n", s.User.Email)
	fmt.Printf("Playlist: %s (%d tracks, %d favorites)\n", s.Playlist, len(s.Tracks), s.FavoriteCount)
	printPlayer(s.Player)

	fmt.Println("\nTracks:")
	for _, t := range s.Tracks {
		marker := "  "
		if t.Current {
			marker = "> "
		}
		fav := " "
		if t.Favorite {
			fav = "♥"
		}
		fmt.Printf("%s%2d %s %s - %s\n", marker, t.Index, fav, t.ArtistLabel, t.Title)
	}
}

func printPlayer(p session.PlayerState) {
	fmt.Printf("Now: [%d] %s - %s\n", p.Index, p.Track.ArtistLabel, p.Track.Title)
	fmt.Printf("State: %s  %s / %s\n", formatState(p), p.PositionLabel, p.DurationLabel)
	if p.Error != "" {
		fmt.Printf("Error: %s\n", p.Error)
	}
}

func printEvent(e event) {
	fmt.Printf("\n[Sequence: %s] === %s ===\n", e.ID, e.Type)

	var envelope struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal([]byte(e.Data), &envelope); err != nil || len(envelope.Payload) == 0 {
		return
	}

	switch e.Type {
	case "status", session.NotificationSessionOpened:
		var s session.Status
		if json.Unmarshal(envelope.Payload, &s) == nil {
			printStatus(s)
		}
	case session.NotificationSessionClosed:
		var u user.Public
		if json.Unmarshal(envelope.Payload, &u) == nil {
			fmt.Printf("Session closed: %s\n", u.Email)
		}
	case "favorites_changed":
		var ids []string
		if json.Unmarshal(envelope.Payload, &ids) == nil {
			fmt.Printf("Favorites: %v\n", ids)
		}
	default:
		var p session.PlayerState
		if json.Unmarshal(envelope.Payload, &p) == nil {
			printPlayer(p)
		}
	}
}
