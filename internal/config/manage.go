package config

import (
	"fmt"
	"slices"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll lists every key with its current value. Secrets read "(set)" or
// "(unset)".
func ShowAll(cfg Config) []KeyInfo {
	result := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		v, _ := lookup(cfg, s.key)
		shown := fmt.Sprint(v)
		if s.secret {
			shown = "(unset)"
			if v != "" {
				shown = "(set)"
			}
		}
		result = append(result, KeyInfo{Key: s.key, EnvVar: s.env(), Value: shown})
	}
	return result
}

// SetKey writes a config key to the platform backend, or a secret key to
// the platform secret store.
func SetKey(key, value string) error {
	return setKeyWith(newPlatformBackend(), keychainSet, key, value)
}

func setKeyWith(b ConfigBackend, setSecret func(service, account, value string) error, key, value string) error {
	i := slices.IndexFunc(specs, func(s keySpec) bool { return s.key == key })
	if i < 0 {
		return fmt.Errorf("unknown config key: %q", key)
	}
	s := specs[i]
	if s.secret {
		return setSecret(keychainService, s.account(), value)
	}

	// Round-trip through a scratch Config to validate and normalize.
	var scratch Config
	if err := assign(&scratch, key, value); err != nil {
		return err
	}
	v, _ := lookup(scratch, key)
	if s.typ == kInt {
		return b.SetInt(key, v.(int))
	}
	return b.SetString(key, fmt.Sprint(v))
}

// ValidKeys returns the list of config key names.
func ValidKeys() []string {
	keys := make([]string, len(specs))
	for i, s := range specs {
		keys[i] = s.key
	}
	return keys
}
