package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/unity-gaming/unity_wallet/internal/config"
	"github.com/unity-gaming/unity_wallet/internal/infra"
	"github.com/unity-gaming/unity_wallet/internal/logging"
	"github.com/unity-gaming/unity_wallet/internal/money"
	"github.com/unity-gaming/unity_wallet/internal/notification"
	"github.com/unity-gaming/unity_wallet/internal/walletclient"
	"github.com/unity-gaming/unity_wallet/internal/walletsync"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewWriter(os.Stderr, cfg.LogLevel)

	if err := run(cfg, logger, os.Stdin, os.Stdout); err != nil {
		logger.Error("walletsync exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.ClientConfig, logger *slog.Logger, in io.Reader, out io.Writer) error {
	if cfg.Username == "" || cfg.Password == "" {
		return fmt.Errorf("WALLET_USERNAME and WALLET_PASSWORD are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := walletclient.New(cfg.APIURL, cfg.RequestTimeout)
	session, err := client.Login(ctx, cfg.Username, cfg.Password)
	if err != nil {
		return fmt.Errorf("login: %s", walletsync.UserMessage(err))
	}
	logger.Info("logged in", slog.String("username", session.Username()), slog.String("user_id", session.UserID()))

	s := walletsync.New(client, session, walletsync.Options{
		RefreshInterval: cfg.RefreshInterval,
		RequestTimeout:  cfg.RequestTimeout,
		Processor:       walletsync.SimulatedProcessor{Delay: cfg.ProcessorDelay},
		Logger:          logger,
	})
	defer s.Close()

	// the header chip is mounted for the whole session
	unmount := s.Mount()
	defer unmount()
	states, cancel := s.Subscribe()
	defer cancel()
	go renderHeader(out, states)

	if err := follow(ctx, cfg, s, session.UserID(), logger); err != nil {
		logger.Warn("balance feed unavailable", slog.String("error", err.Error()))
	}

	sh := &shell{sync: s, client: client, session: session, out: out}
	fmt.Fprintln(out, helpText)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := sh.execute(ctx, line); quit {
				return nil
			}
		}
	}
}

// follow refreshes the wallet on every balance-change hint from Redis or,
// failing that, NATS. Without either the periodic refresh is the only source.
func follow(ctx context.Context, cfg config.ClientConfig, s *walletsync.Sync, userID string, logger *slog.Logger) error {
	switch {
	case cfg.RedisURL != "":
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL, "walletsync")
		if err != nil {
			return err
		}
		events, err := notification.SubscribeRedis(ctx, cache, cfg.BalanceChannel, userID, logger)
		if err != nil {
			cache.Close()
			return err
		}
		go func() {
			defer cache.Close()
			walletsync.Follow(ctx, s, events)
		}()
	case cfg.NATSURL != "":
		conn, err := infra.NewNATSConn(cfg.NATSURL, "walletsync", logger)
		if err != nil {
			return err
		}
		events, err := notification.SubscribeNATS(ctx, conn, cfg.BalanceChannel, userID, logger)
		if err != nil {
			conn.Close()
			return err
		}
		go func() {
			defer conn.Close()
			walletsync.Follow(ctx, s, events)
		}()
	}
	return nil
}

func renderHeader(out io.Writer, states <-chan walletsync.State) {
	var last string
	for st := range states {
		chip := fmt.Sprintf("[wallet %s | %s]", money.Format(st.Balance), st.Status)
		if st.Err != nil {
			chip += " " + walletsync.UserMessage(st.Err)
		}
		if chip != last {
			fmt.Fprintln(out, chip)
			last = chip
		}
	}
}
