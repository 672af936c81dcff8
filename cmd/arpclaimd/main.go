// Command arpclaimd claims an IPv4 address on a network interface by
// answering ARP requests for it.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/vipclaim/arp"
	"github.com/vipclaim/arp/internal/config"
	"golang.org/x/sys/unix"
)

// newFlagSet registers arpclaimd's flags.  Values are read back by name in
// loadConfig, which needs to know whether each flag was set explicitly.
func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Bool("announce", false, "Announce the claimed IP with a gratuitous ARP reply on startup.")
	fs.String("config", "", "YAML configuration file. Positional arguments override its values.")
	fs.String("socket", "raw", "Socket implementation: raw or packet.")
	fs.String("framing", "datagram", "Frame handling: datagram or ethernet.")
	fs.String("log-level", "info", "Log level: trace, debug, info, warn or error.")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <iface> <ip> [mac]\n", name)
		fs.PrintDefaults()
	}

	return fs
}

func main() {
	fs := newFlagSet(os.Args[0])
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := loadConfig(fs, fs.Args())
	if err != nil {
		fs.Usage()
		logrus.Fatal(err)
	}
	logrus.SetLevel(cfg.Level())

	// Lookup interface and its corresponding MAC address
	ifi, err := net.InterfaceByName(cfg.Interface)
	if err != nil {
		logrus.Fatal(errors.Annotate(err, "lookup interface"))
	}
	id, err := cfg.Identity(ifi)
	if err != nil {
		logrus.Fatal(err)
	}

	log := logrus.WithFields(logrus.Fields{
		"iface": ifi.Name,
		"ip":    id.IP,
		"mac":   id.HardwareAddr,
	})
	log.Infof("claiming IP %s on %s[%d] for %s", id.IP, ifi.Name, ifi.Index, id.HardwareAddr)

	mux := arp.NewServeMux()
	mux.Handle(arp.OperationRequest, &arp.Responder{
		Identity: id,
		Logger:   log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	srv := &arp.Server{
		Iface:   ifi,
		Config:  cfg.ARPConfig(),
		Handler: mux,
		Logger:  log,
	}
	if cfg.Announce {
		srv.Announce = &id
	}
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatal(err)
	}

	log.Info("shutting down")
}

// loadConfig builds a validated configuration from the config file named by
// --config, if any, overridden by flags set on fs and positional arguments
// <iface> <ip> [mac].
func loadConfig(fs *pflag.FlagSet, args []string) (*config.Config, error) {
	cfg := &config.Config{}
	if path, _ := fs.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	} else if len(args) < 2 {
		return nil, errors.New("interface and IP address are required")
	}
	if len(args) > 3 {
		return nil, errors.Errorf("unexpected arguments: %v", args[3:])
	}

	for i, dst := range []*string{&cfg.Interface, &cfg.IP, &cfg.MAC} {
		if i < len(args) {
			*dst = args[i]
		}
	}

	if fs.Changed("announce") {
		cfg.Announce, _ = fs.GetBool("announce")
	}
	for name, dst := range map[string]*string{
		"socket":    &cfg.Socket,
		"framing":   &cfg.Framing,
		"log-level": &cfg.LogLevel,
	} {
		if fs.Changed(name) || *dst == "" {
			*dst, _ = fs.GetString(name)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Annotate(err, "invalid configuration")
	}

	return cfg, nil
}
