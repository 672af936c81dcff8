// Package config loads and validates arpclaimd's configuration.
package config

import (
	"net"
	"net/netip"
	"os"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"github.com/vipclaim/arp"
	"gopkg.in/yaml.v3"
)

// Config holds the settings for claiming a single IPv4 address.
type Config struct {
	Interface string `yaml:"interface"`
	IP        string `yaml:"ip"`
	MAC       string `yaml:"mac"`
	Announce  bool   `yaml:"announce"`
	Socket    string `yaml:"socket"`
	Framing   string `yaml:"framing"`
	LogLevel  string `yaml:"log_level"`

	ip    netip.Addr
	mac   arp.HardwareAddr
	level logrus.Level
}

var (
	sockets = map[string]arp.Socket{
		"raw":    arp.SocketRaw,
		"packet": arp.SocketPacket,
	}
	framings = map[string]arp.Framing{
		"datagram": arp.FramingDatagram,
		"ethernet": arp.FramingEthernet,
	}
)

// Load reads a YAML configuration file.  The result is not validated.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "read config")
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, errors.Annotatef(err, "parse config %s", path)
	}

	return &c, nil
}

// Validate checks c and fills in defaults for unset optional fields.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return errors.New("interface is required")
	}

	ip, err := netip.ParseAddr(c.IP)
	if err != nil {
		return errors.Annotatef(err, "ip %q", c.IP)
	}
	if ip = ip.Unmap(); !ip.Is4() {
		return errors.Errorf("ip %q must be IPv4", c.IP)
	}
	c.ip = ip

	if c.MAC != "" {
		mac, err := arp.ParseHardwareAddr(c.MAC)
		if err != nil {
			return errors.Annotatef(err, "mac %q", c.MAC)
		}
		c.mac = mac
	}

	if c.Socket == "" {
		c.Socket = "raw"
	}
	if _, ok := sockets[c.Socket]; !ok {
		return errors.Errorf("unknown socket %q", c.Socket)
	}

	if c.Framing == "" {
		c.Framing = "datagram"
	}
	if _, ok := framings[c.Framing]; !ok {
		return errors.Errorf("unknown framing %q", c.Framing)
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.level, err = logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return errors.Annotate(err, "log_level")
	}

	return nil
}

// Level returns the configured log level.  Validate must have succeeded.
func (c *Config) Level() logrus.Level {
	return c.level
}

// ARPConfig returns the socket configuration for arp.Listen.  Validate must
// have succeeded.
func (c *Config) ARPConfig() *arp.Config {
	return &arp.Config{
		Socket:  sockets[c.Socket],
		Framing: framings[c.Framing],
	}
}

// Identity returns the address pair to claim on ifi.  The configured MAC
// address is used if set, otherwise the interface's own.  Validate must
// have succeeded.
func (c *Config) Identity(ifi *net.Interface) (arp.Identity, error) {
	mac := c.mac
	if c.MAC == "" {
		var err error
		mac, err = arp.HardwareAddrFrom(ifi.HardwareAddr)
		if err != nil {
			return arp.Identity{}, errors.Annotatef(err, "interface %s has no ethernet address", ifi.Name)
		}
	}

	return arp.Identity{
		IP:           c.ip,
		HardwareAddr: mac,
	}, nil
}
