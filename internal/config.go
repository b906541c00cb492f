package internal

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	SelfID             string        `env:"SELF_ID,required=true" validate:"required"`
	SelfName           string        `env:"SELF_NAME,default=me"`
	StoreBackend       string        `env:"STORE_BACKEND,default=badger" validate:"oneof=badger redis memory"`
	RedisURL           string        `env:"REDIS_URL" validate:"required_if=StoreBackend redis"`
	BadgerFilepath     string        `env:"BADGER_FILEPATH,default=./data/badger" validate:"required"`
	BlugeFilepath      string        `env:"BLUGE_FILEPATH,default=./data/bluge" validate:"required"`
	SeedFilepath       string        `env:"SEED_FILEPATH"`
	LogLevel           string        `env:"LOG_LEVEL,default=INFO"`
	Colours            bool          `env:"COLOURS,default=true"`
	DebugPort          int           `env:"DEBUG_PORT,default=0" validate:"gte=0,lte=65535"`
	RestartInterval    time.Duration `env:"RESTART_INTERVAL,default=1s" validate:"gt=0"`
	RefreshInterval    time.Duration `env:"REFRESH_INTERVAL,default=3s" validate:"gt=0"`
	MaxOutbound        int           `env:"MAX_OUTBOUND_MESSAGES,default=3" validate:"gte=0"`
	MaxContentLength   int           `env:"MAX_CONTENT_LENGTH,default=1000" validate:"gt=0"`
	CharReplacement    string        `env:"CHARACTER_REPLACEMENT,default=*"`
	MaxContainers      int           `env:"MAX_EXPLORED_CONTAINERS,default=64" validate:"gte=0"`
	RegistryCacheSize  int           `env:"REGISTRY_CACHE_SIZE,default=256" validate:"gt=0"`
	RequestsCollection string        `env:"REQUESTS_COLLECTION,default=requests" validate:"required"`
	IndexChannelSize   int           `env:"INDEX_CHANNEL_SIZE,default=16" validate:"gt=0"`
	MaxIndexedBatch    int           `env:"MAX_INDEXED_BATCH,default=50" validate:"gt=0"`
	IndexBufferTimeout time.Duration `env:"INDEX_BUFFER_TIMEOUT,default=500ms" validate:"gt=0"`
	MetricInterval     time.Duration `env:"METRIC_INTERVAL,default=10s" validate:"gt=0"`
	LowCapacity        int           `env:"LOW_CAPACITY_THRESHOLD,default=2" validate:"gte=0"`
}

// Validate checks the cross-field rules that env tags cannot express.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	_, err := CharacterRune(c.CharReplacement)
	return err
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
