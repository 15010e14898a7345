package config

import "fmt"

// KeyInfo is one displayable setting.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll lists the effective value of every non-secret key.
func ShowAll(cfg Config) []KeyInfo {
	out := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		if !s.secret {
			out = append(out, KeyInfo{Key: s.key, EnvVar: s.env, Value: fmt.Sprint(s.extract(cfg))})
		}
	}
	return out
}

// SetKey validates value against the key's type and writes it to the
// settings file.
func SetKey(key, value string) error {
	s, err := settable(key)
	if err != nil {
		return err
	}
	v, err := s.parse(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	f, err := openYAMLFile(FilePath())
	if err != nil {
		return err
	}
	return f.Set(key, v)
}

// UnsetKey removes key from the settings file so its default applies again.
func UnsetKey(key string) error {
	if _, err := settable(key); err != nil {
		return err
	}
	f, err := openYAMLFile(FilePath())
	if err != nil {
		return err
	}
	return f.Delete(key)
}

func settable(key string) (keySpec, error) {
	s, ok := lookupSpec(key)
	switch {
	case !ok:
		return keySpec{}, fmt.Errorf("unknown config key: %q", key)
	case s.secret:
		return keySpec{}, fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
	}
	return s, nil
}

// ValidKeys returns the non-secret key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
