package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/growbox/hardware/relay"
	"github.com/temoto/growbox/helpers"
	"github.com/temoto/growbox/log2"
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []Source `hcl:"include"`

	Node struct {
		ReconnectIntervalMs int `hcl:"reconnect_interval_ms"`
		ConnectTimeoutMs    int `hcl:"connect_timeout_ms"`
		WriteTimeoutMs      int `hcl:"write_timeout_ms"`
		TickMs              int `hcl:"tick_ms"`
		AnnounceIntervalMs  int `hcl:"announce_interval_ms"`
		MaxLine             int `hcl:"max_line"`
	}
	Link struct {
		URL      string `hcl:"url"`
		LogDebug bool   `hcl:"log_debug"`
	}
	Identity struct {
		Interface string `hcl:"interface"`
		MAC       string `hcl:"mac"`
	}
	Hardware struct {
		SCD4x struct {
			Enable   bool   `hcl:"enable"`
			Bus      string `hcl:"bus"`
			LowPower bool   `hcl:"low_power"`
		} `hcl:"scd4x"`
		GPIO struct {
			Chip       string `hcl:"chip"`
			relay.Pins `hcl:",squash"`
		} `hcl:"gpio"`
	}
	Metrics struct {
		Listen string `hcl:"listen"`
	}

	_copy_guard sync.Mutex //nolint:unused
}

type Source struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

const (
	DefaultReconnectInterval = 10 * time.Second
	DefaultConnectTimeout    = 3 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultTick              = 200 * time.Millisecond
	DefaultMaxLine           = 256
	DefaultLinkURL           = "tcp://192.168.12.188:8080"
	DefaultInterface         = "wlan0"
	DefaultI2CBus            = "/dev/i2c-1"
	DefaultGPIOChip          = "/dev/gpiochip0"
)

// Defaults fills zero values. Called by ReadConfig after all sources.
func (c *Config) Defaults() {
	if c.Node.ReconnectIntervalMs == 0 {
		c.Node.ReconnectIntervalMs = int(DefaultReconnectInterval / time.Millisecond)
	}
	if c.Node.ConnectTimeoutMs == 0 {
		c.Node.ConnectTimeoutMs = int(DefaultConnectTimeout / time.Millisecond)
	}
	if c.Node.WriteTimeoutMs == 0 {
		c.Node.WriteTimeoutMs = int(DefaultWriteTimeout / time.Millisecond)
	}
	if c.Node.TickMs == 0 {
		c.Node.TickMs = int(DefaultTick / time.Millisecond)
	}
	if c.Node.MaxLine == 0 {
		c.Node.MaxLine = DefaultMaxLine
	}
	if c.Link.URL == "" {
		c.Link.URL = DefaultLinkURL
	}
	if c.Identity.Interface == "" {
		c.Identity.Interface = DefaultInterface
	}
	if c.Hardware.SCD4x.Bus == "" {
		c.Hardware.SCD4x.Bus = DefaultI2CBus
	}
	if c.Hardware.GPIO.Chip == "" {
		c.Hardware.GPIO.Chip = DefaultGPIOChip
	}
	if c.Hardware.GPIO.Light == 0 && c.Hardware.GPIO.Humidifier == 0 && c.Hardware.GPIO.Fan == 0 {
		c.Hardware.GPIO.Light, c.Hardware.GPIO.Humidifier, c.Hardware.GPIO.Fan = 4, 7, 8
	}
}

func (c *Config) Validate() error {
	errs := make([]error, 0, 4)
	if c.Node.ReconnectIntervalMs < 0 {
		errs = append(errs, errors.NotValidf("node.reconnect_interval_ms=%d", c.Node.ReconnectIntervalMs))
	}
	if c.Node.ConnectTimeoutMs < 0 {
		errs = append(errs, errors.NotValidf("node.connect_timeout_ms=%d", c.Node.ConnectTimeoutMs))
	}
	if c.Node.WriteTimeoutMs < 0 {
		errs = append(errs, errors.NotValidf("node.write_timeout_ms=%d", c.Node.WriteTimeoutMs))
	}
	if c.Node.TickMs <= 0 {
		errs = append(errs, errors.NotValidf("node.tick_ms=%d", c.Node.TickMs))
	}
	if c.Node.AnnounceIntervalMs < 0 {
		errs = append(errs, errors.NotValidf("node.announce_interval_ms=%d", c.Node.AnnounceIntervalMs))
	}
	if c.Node.MaxLine < 8 {
		errs = append(errs, errors.NotValidf("node.max_line=%d (min 8)", c.Node.MaxLine))
	}
	pins := c.Hardware.GPIO.Pins
	for _, p := range []struct {
		name string
		line int
	}{{"light", pins.Light}, {"humidifier", pins.Humidifier}, {"fan", pins.Fan}} {
		if p.line < 0 {
			errs = append(errs, errors.NotValidf("hardware.gpio.%s=%d", p.name, p.line))
		}
	}
	if pins.Light == pins.Humidifier || pins.Light == pins.Fan || pins.Humidifier == pins.Fan {
		errs = append(errs, errors.NotValidf("hardware.gpio duplicate line light=%d humidifier=%d fan=%d",
			pins.Light, pins.Humidifier, pins.Fan))
	}
	return helpers.FoldErrors(errs)
}

func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.Node.ReconnectIntervalMs) * time.Millisecond
}
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Node.ConnectTimeoutMs) * time.Millisecond
}
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Node.WriteTimeoutMs) * time.Millisecond
}
func (c *Config) Tick() time.Duration { return time.Duration(c.Node.TickMs) * time.Millisecond }
func (c *Config) AnnounceInterval() time.Duration {
	return time.Duration(c.Node.AnnounceIntervalMs) * time.Millisecond
}

func (c *Config) read(log *log2.Log, fs FullReader, source Source, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		log.Fatalf("config duplicate source=%s", source.Name)
	} else {
		log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	}
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []Source
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// ReadConfig reads sources in order, later values overwrite earlier.
func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		log.Fatal("code error [Must]ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, Source{Name: name}, &errs)
	}
	if len(errs) == 0 {
		c.Defaults()
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
