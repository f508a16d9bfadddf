package dashtypes

// Service is implemented by every registrable client service.
// Services are constructed uninitialized and become usable after Initialize.
type Service interface {
	Name() string
	Initialize() error
}

// KVStore is a string key-value store backing user preferences.
// Implementations decide the persistence scope (process, file, ...).
type KVStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}
