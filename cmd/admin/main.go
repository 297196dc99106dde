package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"raaibar/backend/internal/auth"
	"raaibar/backend/internal/config"
	"raaibar/backend/internal/friends"
	"raaibar/backend/internal/storage"
)

const usage = `Usage: admin <command> [args]

Commands:
  register <identity>          create an identity and print a token for it
  token <identity>             print a token for an existing identity
  friends <identity>           list friends and pending requests
  history <identity> <peer>    print the conversation as JSON`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := requireDurable(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx := context.Background()
	stores, err := storage.Open(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open stores: %v\n", err)
		os.Exit(1)
	}
	defer stores.Close()

	if err := runCommand(ctx, cfg, stores, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stores.Close()
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, cfg config.Config, stores *storage.Stores, args []string) error {
	friendsSvc := friends.NewService(stores.Graph, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)

	switch args[0] {
	case "register":
		if len(args) != 2 {
			return fmt.Errorf("usage: admin register <identity>")
		}
		if err := friendsSvc.Register(ctx, args[1]); err != nil {
			return err
		}
		return printToken(issuer, args[1])

	case "token":
		if len(args) != 2 {
			return fmt.Errorf("usage: admin token <identity>")
		}
		ok, err := stores.Graph.Exists(ctx, args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("identity %q is not registered", args[1])
		}
		return printToken(issuer, args[1])

	case "friends":
		if len(args) != 2 {
			return fmt.Errorf("usage: admin friends <identity>")
		}
		list, err := friendsSvc.ListFriends(ctx, args[1])
		if err != nil {
			return err
		}
		pending, err := friendsSvc.ListPendingRequests(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("friends: %v\npending: %v\n", list, pending)
		return nil

	case "history":
		if len(args) != 3 {
			return fmt.Errorf("usage: admin history <identity> <peer>")
		}
		history, err := stores.Conversations.History(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)

	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

// requireDurable rejects memory drivers, whose data would vanish when the
// command exits.
func requireDurable(cfg config.Config) error {
	if cfg.MessageStore == config.DriverMemory {
		return fmt.Errorf("RAAIBAR_MESSAGE_STORE is %q; admin needs a durable store (%s or %s)",
			cfg.MessageStore, config.DriverPostgres, config.DriverBadger)
	}
	if cfg.GraphStore == config.DriverMemory {
		return fmt.Errorf("RAAIBAR_GRAPH_STORE is %q; admin needs a durable store (%s or %s)",
			cfg.GraphStore, config.DriverPostgres, config.DriverRedis)
	}
	return nil
}

func printToken(issuer *auth.Issuer, identity string) error {
	token, err := issuer.Issue(identity)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
