package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

// keySpec names one settable key. The key doubles as the mapstructure path
// into Config: "smtp.from_name" is Config.SMTP.FromName.
type keySpec struct {
	key    string
	typ    keyType
	secret bool
}

var specs = []keySpec{
	{"server.port", kInt, false},
	{"server.token", kString, true},
	{"log.level", kString, false},
	{"storage.data_dir", kString, false},
	{"llm.provider", kString, false},
	{"llm.timeout", kString, false},
	{"llm.temperature", kFloat, false},
	{"ollama.base_url", kString, false},
	{"ollama.model", kString, false},
	{"openai.base_url", kString, false},
	{"openai.model", kString, false},
	{"openai.api_key", kString, true},
	{"gemini.model", kString, false},
	{"gemini.api_key", kString, true},
	{"smtp.host", kString, false},
	{"smtp.port", kInt, false},
	{"smtp.username", kString, false},
	{"smtp.password", kString, true},
	{"smtp.from", kString, false},
	{"smtp.from_name", kString, false},
	{"imap.host", kString, false},
	{"imap.port", kInt, false},
	{"imap.username", kString, false},
	{"imap.password", kString, true},
	{"imap.mailbox", kString, false},
	{"imap.insecure", kBool, false},
	{"inbox.enabled", kBool, false},
	{"inbox.poll_interval", kString, false},
	{"evaluation.parallelism", kInt, false},
}

// env is the environment variable overriding the key:
// "smtp.from_name" is PROCURA_SMTP_FROM_NAME.
func (s keySpec) env() string {
	return "PROCURA_" + strings.ToUpper(strings.ReplaceAll(s.key, ".", "_"))
}

// account is the secret store entry name of a key: "openai.api_key"
// becomes "openai_api_key".
func (s keySpec) account() string {
	return strings.ReplaceAll(s.key, ".", "_")
}

// assign decodes v into the field key names. Strings are converted to the
// field's type, so "5000" sets an int and "1" sets a bool.
func assign(cfg *Config, key string, v any) error {
	section, field, ok := strings.Cut(key, ".")
	if !ok {
		return fmt.Errorf("malformed config key %q", key)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any{section: map[string]any{field: v}}); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

// lookup returns the current value of key.
func lookup(cfg Config, key string) (any, bool) {
	var tree map[string]any
	if err := mapstructure.Decode(cfg, &tree); err != nil {
		return nil, false
	}
	section, field, _ := strings.Cut(key, ".")
	fields, ok := tree[section].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := fields[field]
	return v, ok
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		var (
			v   any
			ok  bool
			err error
		)
		if s.typ == kInt {
			v, ok, err = b.GetInt(s.key)
		} else {
			var str string
			str, ok, err = b.GetString(s.key)
			ok = ok && (str != "" || s.typ == kString)
			v = str
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok {
			continue
		}
		if err := assign(cfg, s.key, v); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring config key %s: %v\n", s.key, err)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env())
		if raw == "" {
			continue
		}
		if err := assign(cfg, s.key, raw); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring env var %s=%q: %v\n", s.env(), raw, err)
		}
	}
}
