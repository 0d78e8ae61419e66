package main

import (
	"bufio"
	"chat-rooms/client"
	"chat-rooms/domain/chat"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Exit codes for the tester application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config is read from TESTER_* environment variables.
type Config struct {
	ServerURL string `envconfig:"SERVER_URL" default:"http://localhost:8000"`
	Room      string `envconfig:"ROOM" default:"general"`
	Username  string `envconfig:"USERNAME" required:"true"`
	Password  string `envconfig:"PASSWORD" required:"true"`
	Email     string `envconfig:"EMAIL"`
	// TESTER_REGISTER creates the account when the login is refused
	Register bool `envconfig:"REGISTER" default:"false"`
	Colours  bool `envconfig:"COLOURS" default:"true"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Tester error: %v\n", err)
	}
	os.Exit(code)
}

// run logs in, joins the room, prints every envelope and sends each stdin line.
// Lines starting with a slash are commands: /history, /search <terms>, /quit.
func run() (int, error) {
	_ = godotenv.Load()
	var config Config
	if err := envconfig.Process("tester", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	color.Enable = config.Colours

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(config.ServerURL)
	token, err := login(ctx, c, config)
	if err != nil {
		return exitRuntime, err
	}

	live, err := c.Join(ctx, token, chat.RoomID(config.Room))
	if err != nil {
		return exitRuntime, fmt.Errorf("join failed: %w", err)
	}
	defer func() { _ = live.Close() }()
	color.Info.Printf(">>> Connected to %s, room %q (Ctrl+C to quit)\n", config.ServerURL, config.Room)

	done := make(chan error, 1)
	go func() { done <- receive(live) }()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case err := <-done:
			if code := client.CloseCode(err); code == chat.ClosePolicyViolation {
				return exitRuntime, fmt.Errorf("rejected by the server: %w", err)
			}
			if code := client.CloseCode(err); code == chat.CloseNormal || code == chat.CloseGoingAway {
				return exitOK, nil
			}
			return exitRuntime, err
		case line, ok := <-lines:
			if !ok || line == "/quit" {
				return exitOK, nil
			}
			if err := handle(ctx, c, live, token, config.Room, line); err != nil {
				color.Error.Println(err)
			}
		}
	}
}

func login(ctx context.Context, c *client.Client, config Config) (string, error) {
	token, err := c.Login(ctx, config.Username, config.Password)
	var statusErr *client.StatusError
	if err == nil || !config.Register || !errors.As(err, &statusErr) || statusErr.Status != http.StatusUnauthorized {
		return token, err
	}
	email := config.Email
	if email == "" {
		email = config.Username + "@example.com"
	}
	if _, err := c.Register(ctx, config.Username, email, config.Password); err != nil {
		return "", fmt.Errorf("register failed: %w", err)
	}
	color.Info.Printf("Registered %s\n", config.Username)
	return c.Login(ctx, config.Username, config.Password)
}

func receive(live *client.Live) error {
	for {
		envelope, err := live.Next(0)
		if err != nil {
			return err
		}
		printEnvelope(envelope)
	}
}

func handle(ctx context.Context, c *client.Client, live *client.Live, token, room, line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil
	case line == "/history":
		messages, err := c.Messages(ctx, token, chat.RoomID(room), 10, nil)
		if err != nil {
			return err
		}
		for i := len(messages) - 1; i >= 0; i-- {
			printMessage(messages[i])
		}
		return nil
	case strings.HasPrefix(line, "/search "):
		messages, err := c.Search(ctx, token, chat.RoomID(room), strings.TrimPrefix(line, "/search "))
		if err != nil {
			return err
		}
		color.Info.Printf("%d result(s)\n", len(messages))
		for _, m := range messages {
			printMessage(m)
		}
		return nil
	default:
		return live.Send(line)
	}
}

func printEnvelope(envelope chat.Envelope) {
	now := time.Now().Format(time.TimeOnly)
	switch envelope.Kind {
	case chat.KindJoin:
		color.Green.Printf("[%s] + %s\n", now, envelope.Content)
	case chat.KindLeave:
		color.Yellow.Printf("[%s] - %s\n", now, envelope.Content)
	default:
		fmt.Printf("[%s] %s: %s\n", now, color.Cyan.Render(envelope.Username), envelope.Content)
	}
}

func printMessage(m client.Message) {
	fmt.Printf("  #%d [%s] %s: %s\n", m.ID, m.CreatedAt.Local().Format(time.TimeOnly), color.Cyan.Render(m.Username), m.Content)
}
