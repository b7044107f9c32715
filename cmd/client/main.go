package main

import (
	"bufio"
	"chat-relay/client"
	"chat-relay/protocol"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	RelayAddr    string `envconfig:"RELAY_ADDR" default:"localhost:12345"`
	MaxFrameSize uint32 `envconfig:"MAX_FRAME_SIZE" default:"1048576"`
	// CLIENT_COLOURS disables colorized output when false
	Colours bool `envconfig:"CLIENT_COLOURS" default:"true"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	color.Enable = config.Colours

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, config.RelayAddr, config.MaxFrameSize)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = c.Close() }()

	color.Info.Printf(">>> Connected to %s, type /help for commands\n", config.RelayAddr)

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- c.Listen(ctx, func(env protocol.Envelope) { fmt.Println(render(env)) })
	}()

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case err := <-listenErr:
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				color.Warn.Println("Connection closed by server")
				return exitOK, nil
			}
			return exitRuntime, err
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			cmd, err := parseCommand(line)
			if err != nil {
				color.Error.Println(err)
				continue
			}
			if cmd.quit {
				return exitOK, nil
			}
			if cmd.help {
				fmt.Print(usage)
				continue
			}
			if err := cmd.send(c); err != nil {
				return exitRuntime, err
			}
		}
	}
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}
