package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// fileSecrets keeps secrets in a 0600 JSON file keyed by service and account.
type fileSecrets struct {
	// path overrides secretsFilePath when set.
	path string
}

func (f fileSecrets) file() string {
	if f.path != "" {
		return f.path
	}
	return secretsFilePath()
}

func (f fileSecrets) read() (map[string]map[string]string, error) {
	data, err := os.ReadFile(f.file())
	if err != nil {
		return nil, err
	}
	var secrets map[string]map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return secrets, nil
}

func (f fileSecrets) Get(service, account string) (string, error) {
	secrets, err := f.read()
	if err != nil {
		return "", fmt.Errorf("secrets not available: %w", err)
	}
	svc, ok := secrets[service]
	if !ok {
		return "", fmt.Errorf("service %q not found", service)
	}
	val, ok := svc[account]
	if !ok {
		return "", fmt.Errorf("account %q not found in service %q", account, service)
	}
	return val, nil
}

func (f fileSecrets) Set(service, account, value string) error {
	secrets, _ := f.read()
	if secrets == nil {
		secrets = make(map[string]map[string]string)
	}
	if secrets[service] == nil {
		secrets[service] = make(map[string]string)
	}
	secrets[service][account] = value

	p := f.file()
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, out, 0o600)
}
