package tracker

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultCounterPrefix = "count:"
	DefaultResultPrefix  = "result:"
	DefaultResultTTL     = 10 * time.Second
)

var ErrInvalidOptions = errors.New("invalid tracker options")
var ErrInvalidCounter = errors.New("request counter is not an integer")

type Options struct {
	CounterPrefix string
	ResultPrefix  string
	// how long a fetched page is served from the store
	ResultTTL time.Duration
	// collapse concurrent misses for the same URL into one fetch
	SingleFlight bool
}

func DefaultOptions() Options {
	return Options{
		CounterPrefix: DefaultCounterPrefix,
		ResultPrefix:  DefaultResultPrefix,
		ResultTTL:     DefaultResultTTL,
	}
}

// Validate rejects prefixes that would let a counter key and a result key
// coincide for some pair of URLs.
func (o Options) Validate() error {
	if err := ValidatePrefixes(o.CounterPrefix, o.ResultPrefix); err != nil {
		return err
	}
	if o.ResultTTL <= 0 {
		return fmt.Errorf("%w: result ttl must be positive, got %v", ErrInvalidOptions, o.ResultTTL)
	}
	return nil
}

func ValidatePrefixes(counterPrefix string, resultPrefix string) error {
	if counterPrefix == "" || resultPrefix == "" {
		return fmt.Errorf("%w: key prefixes cannot be empty", ErrInvalidOptions)
	}
	if strings.HasPrefix(counterPrefix, resultPrefix) || strings.HasPrefix(resultPrefix, counterPrefix) {
		return fmt.Errorf("%w: key prefixes %q and %q overlap", ErrInvalidOptions, counterPrefix, resultPrefix)
	}
	return nil
}
