package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

type Config struct {
	LogLevel string   `toml:"log_level" yaml:"log_level"`
	Sender   Sender   `toml:"sender" yaml:"sender"`
	Link     Link     `toml:"link" yaml:"link"`
	Receiver Receiver `toml:"receiver" yaml:"receiver"`
	Bridge   Bridge   `toml:"bridge" yaml:"bridge"`
}

// Sender describes the ELM327 adapter and how it is polled.
type Sender struct {
	SerialPort      string `toml:"serial_port" yaml:"serial_port"`
	Baud            int    `toml:"baud" yaml:"baud"`
	PollDelayMS     int    `toml:"poll_delay_ms" yaml:"poll_delay_ms"`
	ResponseDelayMS int    `toml:"response_delay_ms" yaml:"response_delay_ms"`
	StrictHex       bool   `toml:"strict_hex" yaml:"strict_hex"`

	// optional CAN interface for a dash display, empty disables it
	CANInterface string `toml:"can_interface" yaml:"can_interface"`

	// empty disables the metrics endpoint
	MetricsAddr string `toml:"metrics_addr" yaml:"metrics_addr"`
}

func (s Sender) PollDelay() time.Duration {
	return time.Duration(s.PollDelayMS) * time.Millisecond
}

func (s Sender) ResponseDelay() time.Duration {
	return time.Duration(s.ResponseDelayMS) * time.Millisecond
}

// Link is the datagram hop between sender and receiver.
type Link struct {
	Server        string `toml:"server" yaml:"server"`
	Port          int    `toml:"port" yaml:"port"`
	Listen        string `toml:"listen" yaml:"listen"`
	Framed        bool   `toml:"framed" yaml:"framed"`
	DataRefreshMS int    `toml:"data_refresh_ms" yaml:"data_refresh_ms"`
}

func (l Link) DataRefresh() time.Duration {
	return time.Duration(l.DataRefreshMS) * time.Millisecond
}

type MQTT struct {
	Broker   string `toml:"broker" yaml:"broker"`
	Topic    string `toml:"topic" yaml:"topic"`
	ClientID string `toml:"client_id" yaml:"client_id"`
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
}

type Receiver struct {
	TimeoutMS         int    `toml:"timeout_ms" yaml:"timeout_ms"`
	PublishIntervalMS int    `toml:"publish_interval_ms" yaml:"publish_interval_ms"`
	MetricsAddr       string `toml:"metrics_addr" yaml:"metrics_addr"`
	MQTT              MQTT   `toml:"mqtt" yaml:"mqtt"`
}

func (r Receiver) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

func (r Receiver) PublishInterval() time.Duration {
	return time.Duration(r.PublishIntervalMS) * time.Millisecond
}

type Bridge struct {
	DBPath  string `toml:"db_path" yaml:"db_path"`
	WebAddr string `toml:"web_addr" yaml:"web_addr"`
	MQTT    MQTT   `toml:"mqtt" yaml:"mqtt"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		Sender: Sender{
			SerialPort:      "/dev/obd",
			Baud:            115200,
			PollDelayMS:     100,
			ResponseDelayMS: 400,
		},
		Link: Link{
			Server:        "127.0.0.1",
			Port:          5000,
			Listen:        ":5000",
			DataRefreshMS: 1000,
		},
		Receiver: Receiver{
			TimeoutMS:         10000,
			PublishIntervalMS: 1000,
			MetricsAddr:       ":9100",
			MQTT: MQTT{
				Broker:   "tcp://localhost:1883",
				Topic:    "car/telemetry",
				ClientID: "tsi-receiver",
			},
		},
		Bridge: Bridge{
			DBPath:  "telemetry.db",
			WebAddr: ":8080",
			MQTT: MQTT{
				Broker:   "tcp://localhost:1883",
				Topic:    "car/telemetry",
				ClientID: "tsi-bridge",
			},
		},
	}
}

// Load reads a toml or yaml file chosen by extension on top of the defaults,
// then applies a .env file and environment overrides. Relative paths that
// don't exist in the working directory are looked up next to the binary.
func Load(fileName string) (Config, error) {
	path, err := resolve(fileName)
	if err != nil {
		return Config{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to open file %s", path)
	}
	defer file.Close()

	cfg, err := LoadFromReader(file, formatOf(path))
	if err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(); err != nil {
		log.WithField("err", err).Debug("no .env file loaded")
	}
	ApplyEnv(&cfg)
	return cfg, Validate(cfg)
}

func resolve(fileName string) (string, error) {
	if filepath.IsAbs(fileName) {
		return fileName, nil
	}
	if _, err := os.Stat(fileName); err == nil {
		return fileName, nil
	}
	dir, err := filepath.Abs(filepath.Dir(os.Args[0]))
	if err != nil {
		return "", errors.Wrapf(err, "unable to determine binary location")
	}
	return filepath.Join(dir, fileName), nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML
	}
	return FormatTOML
}

// LoadFromReader decodes configuration in the given format over the defaults.
func LoadFromReader(configReader io.Reader, format string) (Config, error) {
	configData, err := io.ReadAll(configReader)
	if err != nil {
		return Config{}, errors.Wrap(err, "unable to read config reader")
	}
	cfg := Default()
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(configData), &cfg); err != nil {
			return Config{}, errors.Wrap(err, "unable to decode toml configuration")
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(configData))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && err != io.EOF {
			return Config{}, errors.Wrap(err, "unable to decode yaml configuration")
		}
	default:
		return Config{}, errors.Errorf("unknown config format %q", format)
	}
	return cfg, nil
}

// ApplyEnv overrides endpoints and credentials from the environment so
// secrets can stay out of config files.
func ApplyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	for _, m := range []*MQTT{&cfg.Receiver.MQTT, &cfg.Bridge.MQTT} {
		set(&m.Broker, "MQTT_BROKER")
		set(&m.Topic, "MQTT_TOPIC")
		set(&m.Username, "MQTT_USERNAME")
		set(&m.Password, "MQTT_PASSWORD")
	}
	set(&cfg.Bridge.DBPath, "DB_PATH")
	set(&cfg.Sender.SerialPort, "SERIAL_PORT")
	set(&cfg.LogLevel, "LOG_LEVEL")
}

func Validate(cfg Config) error {
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	if cfg.Sender.Baud <= 0 {
		return errors.Errorf("sender.baud must be positive, got %d", cfg.Sender.Baud)
	}
	if cfg.Sender.PollDelayMS < 0 || cfg.Sender.ResponseDelayMS < 0 {
		return errors.New("sender delays must not be negative")
	}
	if cfg.Link.Port <= 0 || cfg.Link.Port > 65535 {
		return errors.Errorf("link.port out of range: %d", cfg.Link.Port)
	}
	if cfg.Link.DataRefreshMS <= 0 {
		return errors.New("link.data_refresh_ms must be positive")
	}
	if cfg.Receiver.TimeoutMS <= 0 {
		return errors.New("receiver.timeout_ms must be positive")
	}
	if cfg.Receiver.PublishIntervalMS <= 0 {
		return errors.New("receiver.publish_interval_ms must be positive")
	}
	for name, m := range map[string]MQTT{"receiver": cfg.Receiver.MQTT, "bridge": cfg.Bridge.MQTT} {
		if m.Broker == "" || m.Topic == "" {
			return errors.Errorf("%s.mqtt needs a broker and topic", name)
		}
	}
	return nil
}
