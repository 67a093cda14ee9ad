package config

import (
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	BackendMock   = "mock"
	BackendBridge = "bridge"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Phone      PhoneConfig      `yaml:"phone"`
	Backend    BackendConfig    `yaml:"backend"`
	Mock       MockConfig       `yaml:"mock"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Pairing    PairingConfig    `yaml:"pairing"`
	Broadcast  BroadcastConfig  `yaml:"broadcast"`
}

type ServerConfig struct {
	Port int    `yaml:"port" env:"PORT"`
	Host string `yaml:"host" env:"WA_HOST"`
	// BackendURL tells the served page where to open its realtime channel
	// when the page and the API live on different origins.
	BackendURL  string   `yaml:"backend_url" env:"BACKEND_URL"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGIN" envSeparator:","`
	// Realtime disables the websocket channel and pairing page on hosts
	// that cannot keep connections open.
	Realtime bool `yaml:"realtime" env:"WA_REALTIME"`
}

type PhoneConfig struct {
	CountryCode string `yaml:"country_code" env:"WA_COUNTRY_CODE"`
	Suffix      string `yaml:"suffix"`
}

// BackendConfig selects the session backend. An empty Kind resolves to the
// bridge when a command is configured and to the mock otherwise.
type BackendConfig struct {
	Kind    string   `yaml:"kind" env:"WA_BACKEND"`
	Command string   `yaml:"command" env:"WA_BRIDGE_COMMAND"`
	Args    []string `yaml:"args"`
	Dir     string   `yaml:"dir"`
	Env     []string `yaml:"env"`
}

type MockConfig struct {
	PairingDelay    time.Duration `yaml:"pairing_delay"`
	PairingRefresh  time.Duration `yaml:"pairing_refresh"`
	AuthDelay       time.Duration `yaml:"auth_delay"`
	ReadyDelay      time.Duration `yaml:"ready_delay"`
	DisconnectAfter time.Duration `yaml:"disconnect_after"`
	RestoredSession bool          `yaml:"restored_session"`
}

type DispatchConfig struct {
	MaxInFlight int64         `yaml:"max_in_flight"`
	SendTimeout time.Duration `yaml:"send_timeout"`
}

type SupervisorConfig struct {
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

type PairingConfig struct {
	PrintTerminal bool `yaml:"print_terminal"`
}

type BroadcastConfig struct {
	Buffer int `yaml:"buffer"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        3000,
			Host:        "0.0.0.0",
			CORSOrigins: []string{"*"},
			Realtime:    true,
		},
		Phone: PhoneConfig{
			CountryCode: "62",
			Suffix:      "@c.us",
		},
		Mock: MockConfig{
			PairingDelay:   time.Second,
			PairingRefresh: 20 * time.Second,
			AuthDelay:      15 * time.Second,
			ReadyDelay:     2 * time.Second,
		},
		Supervisor: SupervisorConfig{
			BaseDelay: time.Second,
			MaxDelay:  30 * time.Second,
		},
		Pairing: PairingConfig{
			PrintTerminal: true,
		},
		Broadcast: BroadcastConfig{
			Buffer: 64,
		},
	}
}

// Load reads path over the defaults and then applies environment overrides.
// A missing file is not an error; the service runs on defaults and env.
// Callers apply their own overrides and then call Validate.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, errors.Wrapf(err, "read config %s", path)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config %s", path)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse env")
	}
	return cfg, nil
}

// BackendKind returns the configured backend kind, resolving an empty one.
func (c *Config) BackendKind() string {
	switch {
	case c.Backend.Kind != "":
		return c.Backend.Kind
	case c.Backend.Command != "":
		return BackendBridge
	default:
		return BackendMock
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Phone.CountryCode == "" {
		return errors.New("phone.country_code is required")
	}
	for _, r := range c.Phone.CountryCode {
		if r < '0' || r > '9' {
			return errors.Errorf("phone.country_code %q must be digits", c.Phone.CountryCode)
		}
	}
	switch c.BackendKind() {
	case BackendMock:
	case BackendBridge:
		if c.Backend.Command == "" {
			return errors.New("backend.command is required for the bridge backend")
		}
	default:
		return errors.Errorf("unknown backend kind %q", c.Backend.Kind)
	}
	if c.Dispatch.MaxInFlight < 0 {
		return errors.New("dispatch.max_in_flight must not be negative")
	}
	if c.Supervisor.MaxDelay > 0 && c.Supervisor.MaxDelay < c.Supervisor.BaseDelay {
		return errors.New("supervisor.max_delay must not be below base_delay")
	}
	return nil
}
