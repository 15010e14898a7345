package config

// Backend persists non-secret settings addressed by dotted keys such as
// "server.port".
type Backend interface {
	Get(key string) (raw string, ok bool, err error)
	Set(key string, value any) error
	Delete(key string) error
}
