// Package main provides the ncp command-line interface.
//
// ncp moves a file or directory tree between two hosts over a single
// TCP connection. One end runs `ncp send`, the other `ncp recv`;
// either end may listen while the other connects.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ncp/limits"
	"github.com/opd-ai/ncp/session"
	"github.com/opd-ai/ncp/transport"
	"github.com/opd-ai/ncp/wire"
)

// Exit codes reported to the shell.
const (
	exitOK               = 0
	exitGeneral          = 1
	exitProtocol         = 2
	exitIO               = 3
	exitNoSpace          = 6
	exitRetriesExhausted = 11
)

// CLI configuration shared by both subcommands.
type cliConfig struct {
	host      string
	port      uint
	listen    bool
	retries   int
	overwrite string
	checksum  string
	verbose   bool
	trace     bool
	path      string
}

func registerCommonFlags(fs *flag.FlagSet, config *cliConfig) {
	fs.StringVar(&config.host, "host", "127.0.0.1", "Peer address to connect to, or bind address with -listen")
	fs.UintVar(&config.port, "port", 7779, "TCP port")
	fs.BoolVar(&config.listen, "listen", false, "Listen for the peer instead of connecting")
	fs.IntVar(&config.retries, "retries", transport.DefaultRetries, "Connection attempts when sending (1s apart)")
	fs.StringVar(&config.overwrite, "overwrite", "ask", "Overwrite policy for existing files (ask, yes, no)")
	fs.StringVar(&config.checksum, "checksum", "blake2b", "Payload digest logged after each file (blake2b, none)")
	fs.BoolVar(&config.verbose, "v", false, "Enable debug logging")
	fs.BoolVar(&config.trace, "vv", false, "Enable trace logging")
}

func parseSubcommand(name, pathUsage string, args []string) (*cliConfig, error) {
	config := &cliConfig{}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	registerCommonFlags(fs, config)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s %s [options] %s\n\nOptions:\n", os.Args[0], name, pathUsage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("%s requires exactly one %s argument", name, pathUsage)
	}
	config.path = fs.Arg(0)

	return config, validateConfig(config)
}

func validateConfig(config *cliConfig) error {
	if config.port == 0 || config.port > 65535 {
		return fmt.Errorf("invalid port: must be between 1 and 65535")
	}
	if config.host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if config.retries < 1 {
		return fmt.Errorf("retries must be at least 1")
	}
	if _, err := wire.ParseOverwriteMode(config.overwrite); err != nil {
		return err
	}
	switch config.checksum {
	case "blake2b", "none":
	default:
		return fmt.Errorf("invalid checksum mode %q (blake2b, none)", config.checksum)
	}
	return nil
}

func printUsage() {
	fmt.Println("ncp - network copy")
	fmt.Println()
	fmt.Println("Moves a file or directory tree between two hosts over TCP.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s send [options] <path>\n", os.Args[0])
	fmt.Printf("  %s recv [options] <dest>\n", os.Args[0])
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  # Receiver listens, sender connects\n")
	fmt.Printf("  %s recv -listen -port 7779 ./downloads\n", os.Args[0])
	fmt.Printf("  %s send -host 192.0.2.10 -port 7779 ./project\n", os.Args[0])
	fmt.Println()
	fmt.Printf("  # Sender listens instead (NAT on the receiver side)\n")
	fmt.Printf("  %s send -listen -port 7779 ./project\n", os.Args[0])
	fmt.Printf("  %s recv -host 192.0.2.20 -port 7779 ./downloads\n", os.Args[0])
	fmt.Println()
	fmt.Println("Run a subcommand with -h for its options.")
}

func newLogger(config *cliConfig) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	if config.verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if config.trace {
		log.SetLevel(logrus.TraceLevel)
	}
	return log
}

// stdinPrompter asks on the terminal whether an existing file should be
// overwritten.
type stdinPrompter struct {
	in *bufio.Reader
}

func newStdinPrompter() *stdinPrompter {
	return &stdinPrompter{in: bufio.NewReader(os.Stdin)}
}

func (p *stdinPrompter) ConfirmOverwrite(path string) bool {
	fmt.Printf("File %s already exists. Overwrite? (y/N): ", path)
	line, err := p.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func sessionConfig(config *cliConfig, log *logrus.Logger) session.Config {
	mode, _ := wire.ParseOverwriteMode(config.overwrite)
	return session.Config{
		Overwrite:       mode,
		DisableChecksum: config.checksum == "none",
		Logger:          log,
	}
}

func openConnection(ctx context.Context, config *cliConfig, role transport.Role, log *logrus.Logger) (net.Conn, error) {
	driver := &transport.Driver{
		Addr:    fmt.Sprintf("%s:%d", config.host, config.port),
		Retries: config.retries,
		Logger:  log,
	}
	mode := transport.ModeConnect
	if config.listen {
		mode = transport.ModeListen
	}
	return driver.Open(ctx, role, mode)
}

func runSend(ctx context.Context, config *cliConfig) error {
	log := newLogger(config)
	logStartup(log, "send", config)

	conn, err := openConnection(ctx, config, transport.RoleSender, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	return session.NewSender(conn, sessionConfig(config, log)).Send(config.path)
}

func runRecv(ctx context.Context, config *cliConfig) error {
	log := newLogger(config)
	logStartup(log, "recv", config)

	// The destination is not pre-created: a missing destination path is
	// itself the final path for single-item transfers, and directory
	// trees create what they need entry by entry.
	conn, err := openConnection(ctx, config, transport.RoleReceiver, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	receiver := session.NewReceiver(conn, config.path, newStdinPrompter(), sessionConfig(config, log))
	return receiver.Receive()
}

func logStartup(log *logrus.Logger, command string, config *cliConfig) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	log.WithFields(logrus.Fields{
		"command":  command,
		"hostname": hostname,
		"peer":     fmt.Sprintf("%s:%d", config.host, config.port),
		"listen":   config.listen,
		"path":     config.path,
	}).Debug("Starting")
}

// exitCode maps an error to the code reported to the shell.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, transport.ErrRetriesExhausted):
		return exitRetriesExhausted
	case errors.Is(err, session.ErrRejected):
		if strings.Contains(err.Error(), "Insufficient disk space") {
			return exitNoSpace
		}
		return exitGeneral
	case errors.Is(err, session.ErrProtocol),
		errors.Is(err, wire.ErrUnknownMessageType),
		errors.Is(err, wire.ErrLengthMismatch),
		errors.Is(err, wire.ErrTruncated),
		errors.Is(err, limits.ErrLengthTooLarge):
		return exitProtocol
	case errors.Is(err, session.ErrTransferFailed),
		errors.Is(err, session.ErrTransferIncomplete):
		return exitIO
	default:
		return exitGeneral
	}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitGeneral)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var run func(context.Context, *cliConfig) error
	var pathUsage string
	switch os.Args[1] {
	case "send":
		run, pathUsage = runSend, "<path>"
	case "recv":
		run, pathUsage = runRecv, "<dest>"
	case "-h", "-help", "--help", "help":
		printUsage()
		os.Exit(exitOK)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(exitGeneral)
	}

	config, err := parseSubcommand(os.Args[1], pathUsage, os.Args[2:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitGeneral)
	}

	if err := run(ctx, config); err != nil {
		logrus.WithError(err).Error("Transfer failed")
		os.Exit(exitCode(err))
	}
}
