package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huegate/internal/app"
	"github.com/dokzlo13/huegate/internal/config"
	"github.com/dokzlo13/huegate/internal/discovery"
	"github.com/dokzlo13/huegate/internal/pairing"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	bridge := flag.String("bridge", "", "Bridge address; skips discovery")
	yes := flag.Bool("y", false, "Do not ask whether the link button was pressed")
	flag.Parse()

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	app.SetupLogging(cfg.Log.GetLevel(), cfg.Log.UseJSON, cfg.Log.Colors)

	if !*yes && !confirm(os.Stdin, os.Stdout, "Have you pressed the hue button? (y/n) ") {
		fmt.Println("Press the link button on the bridge, then run this command again.")
		os.Exit(1)
	}

	ctx := app.SignalContext()

	cred, err := app.RunRegistration(ctx, cfg, *bridge)
	if err != nil {
		log.Error().Err(err).Msg("Registration failed")
		fmt.Fprintln(os.Stderr, hint(err))
		os.Exit(1)
	}

	fmt.Printf("Registered with bridge %s, credentials saved to %s\n", cred.IPAddress, cfg.Credentials.Path)
}

// confirm asks question and reports whether the answer starts with y
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprint(out, question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y")
}

// hint turns a registration error into an instruction for the operator
func hint(err error) string {
	switch {
	case errors.Is(err, discovery.ErrNotFound):
		return "No bridge found. Make sure it is powered and on this network, or pass -bridge <address>."
	case errors.Is(err, pairing.ErrButtonNotPressed):
		return "The bridge did not accept the registration. Press its link button and try again."
	case errors.Is(err, pairing.ErrNoHardwareID):
		return "Could not derive a client id. Set pairing.identity_path to a writable file."
	default:
		return "Registration failed: " + err.Error()
	}
}
