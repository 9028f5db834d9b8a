// cipserver is the EtherNet/IP CIP device simulator: load a TOML
// configuration document, declare tags, and serve TCP explicit messaging
// plus UDP discovery. Grounded on tonylturner-cipdip/cmd/cipdip's cobra
// root command shape and plcconnector/example/main.go's listener-plus-
// signal-handling main loop, replacing that teacher's hand-rolled flag
// parsing and fmt.Println logging with cobra and zerolog per the ambient
// stack.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/industrialgo/cipstack/cip"
	"github.com/industrialgo/cipstack/config"
	"github.com/industrialgo/cipstack/device"
	"github.com/industrialgo/cipstack/historize"
	"github.com/industrialgo/cipstack/server"
	"github.com/industrialgo/cipstack/webapi"
)

func main() {
	var (
		configPath string
		tcpAddr    string
		udpAddr    string
		httpAddr   string
		tagDecls   []string
		adminToken string
		mqttURL    string
		verbose    bool
	)

	root := &cobra.Command{
		Use:           "cipserver",
		Short:         "EtherNet/IP CIP device simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(verbose)

			doc := &config.Document{}
			if configPath != "" {
				var err error
				doc, err = config.Load(configPath)
				if err != nil {
					return err
				}
			} else if err := config.Validate(doc); err != nil {
				return err
			}

			dev := device.New(config.DeviceConfig(doc))

			for _, decl := range tagDecls {
				if err := declareTag(dev, decl); err != nil {
					return fmt.Errorf("--tag %q: %w", decl, err)
				}
			}

			policy, segs, err := config.RoutePolicy(doc)
			if err != nil {
				return err
			}
			dev.Dispatcher.RoutePolicy = policy
			dev.Dispatcher.RouteExact = segs

			srv := server.New(dev, dev)

			if mqttURL != "" {
				host, portStr, err := net.SplitHostPort(mqttURL)
				if err != nil {
					return fmt.Errorf("--mqtt %q: %w", mqttURL, err)
				}
				port, err := strconv.Atoi(portStr)
				if err != nil {
					return fmt.Errorf("--mqtt %q: %w", mqttURL, err)
				}
				sink, err := historize.NewMQTTSink(historize.MQTTConfig{Broker: host, Port: port, ClientID: "cipserver"})
				if err != nil {
					return fmt.Errorf("historize mqtt: %w", err)
				}
				dev.Sink = sink
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			errCh := make(chan error, 3)
			go func() { errCh <- srv.Serve(ctx, tcpAddr) }()
			go func() { errCh <- srv.ServeUDP(ctx, udpAddr) }()
			if httpAddr != "" {
				go func() {
					r := webapi.NewRouter(srv, webapi.Config{AdminToken: adminToken})
					errCh <- httpListen(ctx, httpAddr, r)
				}()
			}

			log.Info().Str("tcp", tcpAddr).Str("udp", udpAddr).Msg("cipserver listening")

			select {
			case <-ctx.Done():
				return nil
			case err := <-errCh:
				return err
			}
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "path to TOML configuration document")
	root.Flags().StringVar(&tcpAddr, "tcp", ":44818", "TCP explicit-messaging listen address")
	root.Flags().StringVar(&udpAddr, "udp", ":44818", "UDP discovery listen address")
	root.Flags().StringVar(&httpAddr, "http", "", "HTTP introspection listen address (empty disables it)")
	root.Flags().StringArrayVar(&tagDecls, "tag", nil, "tag declaration, NAME=TYPE[COUNT], repeatable")
	root.Flags().StringVar(&adminToken, "admin-token", "", "token required by the web introspection surface's mutating endpoints")
	root.Flags().StringVar(&mqttURL, "mqtt", "", "MQTT broker address, host:port, to publish successful tag writes to (empty disables it)")
	root.Flags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func httpListen(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func setupLogging(verbose bool) {
	w := zerolog.ConsoleWriter{Out: colorable.NewColorable(os.Stderr), NoColor: !isatty.IsTerminal(os.Stderr.Fd())}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// tagDeclRE matches the §6 tag declaration grammar, name[@class/instance/
// attribute]=TYPE[count].
var tagDeclRE = regexp.MustCompile(`^(\w+)(?:@(\d+)/(\d+)/(\d+))?=(\w+)(?:\[(\d+)\])?$`)

func declareTag(dev *device.Device, decl string) error {
	m := tagDeclRE.FindStringSubmatch(decl)
	if m == nil {
		return fmt.Errorf("does not match NAME[@class/instance/attribute]=TYPE[count]")
	}
	name, typeName, countStr := m[1], m[5], m[6]
	t, ok := cip.ParseTypeName(typeName)
	if !ok {
		return fmt.Errorf("unrecognized type %q", typeName)
	}
	count := 1
	if countStr != "" {
		n, err := strconv.Atoi(countStr)
		if err != nil {
			return err
		}
		count = n
	}
	dev.Tags.Declare(name, t, count)
	return nil
}
