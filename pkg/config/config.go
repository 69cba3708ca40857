// Package config parses the flat key=value configuration file described in
// spec §6 and validates the result with struct tags, mirroring
// nabbar-golib's ServerConfig.Validate() pattern — a validated struct
// rather than a loosely-typed map — while the file format itself stays the
// spec's literal trivial grammar (that collaborator is explicitly out of
// scope per §1, so no markup library is substituted in for it).
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Config is the parsed, validated form of the flat key=value file (§6).
type Config struct {
	Workers        int    `validate:"gte=1"`
	QueueSize      int    `validate:"gte=1"`
	BlockWhenFull  bool
	TimeoutRead    int `validate:"gte=0"` // milliseconds
	TimeoutWrite   int `validate:"gte=0"`
	RetriesRead    int `validate:"gte=0"`
	RetriesWrite   int `validate:"gte=0"`
	LogRotate      int `validate:"gte=0"`
	Username       string
	RootDir        string
	DocumentRoot   string
	Port           int    `validate:"gte=1,lte=65535"`
	Hostname       string `validate:"omitempty,hostname|ipv4"`
	LogFile        string
}

// Default returns the spec's default tunables (§4.8, §3 "Buffers").
func Default() Config {
	return Config{
		Workers:       8,
		QueueSize:     64,
		TimeoutRead:   30_000,
		TimeoutWrite:  30_000,
		RetriesRead:   2,
		RetriesWrite:  2,
		Port:          8080,
	}
}

// Load reads the flat key=value file at path into cfg, starting from
// Default() and overwriting each recognized key.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return cfg, fmt.Errorf("config: %s:%d: missing '=' in %q", path, line, text)
		}
		if err := apply(&cfg, strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return cfg, fmt.Errorf("config: %s:%d: %w", path, line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return cfg, nil
}

func apply(cfg *Config, key, value string) error {
	switch key {
	case "workers":
		return setInt(&cfg.Workers, value)
	case "queuesize":
		return setInt(&cfg.QueueSize, value)
	case "block_when_full":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("block_when_full: %w", err)
		}
		cfg.BlockWhenFull = b
	case "timeout_read":
		return setInt(&cfg.TimeoutRead, value)
	case "timeout_write":
		return setInt(&cfg.TimeoutWrite, value)
	case "retries_read":
		return setInt(&cfg.RetriesRead, value)
	case "retries_write":
		return setInt(&cfg.RetriesWrite, value)
	case "logrotate":
		return setInt(&cfg.LogRotate, value)
	case "username":
		cfg.Username = value
	case "rootdir":
		cfg.RootDir = value
	case "documentroot":
		cfg.DocumentRoot = value
	case "port":
		return setInt(&cfg.Port, value)
	case "hostname":
		cfg.Hostname = value
	case "logfile":
		cfg.LogFile = value
	default:
		// unrecognized keys are silently ignored, matching §4.3's
		// "unknown fields are silently ignored" convention applied to
		// this collaborator's own grammar.
	}
	return nil
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("expected integer, got %q", value)
	}
	*dst = n
	return nil
}

// Validate runs struct-tag validation via go-playground/validator, per
// nabbar-golib's ServerConfig.Validate() shape.
func (c Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		if _, ok := err.(*validator.InvalidValidationError); ok {
			return err
		}
		var msgs []string
		for _, fe := range err.(validator.ValidationErrors) {
			msgs = append(msgs, fmt.Sprintf("field %q fails constraint %q", fe.Field(), fe.ActualTag()))
		}
		return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// PrivilegedFieldsApply reports whether username/rootdir effects should be
// applied, gated on uid==0 per spec §6.
func PrivilegedFieldsApply(getuid func() int) bool {
	return getuid() == 0
}
