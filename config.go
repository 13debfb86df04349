package ngramlm

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hupe1980/ngramlm/format"
	"github.com/hupe1980/ngramlm/internal/quantization"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("ngramlm: invalid config")

// WarningAction selects how a policy violation is handled.
type WarningAction uint8

const (
	// Silent repairs the problem without logging.
	Silent WarningAction = iota
	// Complain repairs the problem and logs a warning.
	Complain
	// ThrowUp fails the operation with a typed error.
	ThrowUp
)

// WriteMethod selects how the builder produces the output file.
type WriteMethod uint8

const (
	// WriteMmap stages the model in a temporary file and renames it into place.
	WriteMmap WriteMethod = iota
	// WriteAfter assembles the model in memory and writes it once.
	WriteAfter
)

// RestFunction selects how rest costs are estimated for RestProbing models.
type RestFunction uint8

const (
	// RestMax uses the largest probability of the n-gram and its left extensions.
	RestMax RestFunction = iota
	// RestLower uses the backoff estimate through lower orders.
	RestLower
)

// LoadMethod selects how the model bytes become addressable.
type LoadMethod uint8

const (
	// Lazy maps the file and lets pages fault in on demand.
	Lazy LoadMethod = iota
	// PopulateOrLazy prefaults the mapping where supported, else Lazy.
	PopulateOrLazy
	// PopulateOrRead prefaults the mapping where supported, else Read.
	PopulateOrRead
	// Read copies the file to the heap.
	Read
	// ParallelRead copies the file to the heap with concurrent readers.
	ParallelRead
)

var (
	warningActionNames = []string{"silent", "complain", "throw_up"}
	writeMethodNames   = []string{"write_mmap", "write_after"}
	restFunctionNames  = []string{"rest_max", "rest_lower"}
	loadMethodNames    = []string{"lazy", "populate_or_lazy", "populate_or_read", "read", "parallel_read"}
)

func enumString[T ~uint8](names []string, v T) string {
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("%d", v)
}

func parseEnum[T ~uint8](kind string, names []string, s string) (T, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range names {
		if s == name || s == strings.ReplaceAll(name, "_", "") {
			return T(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown %s %q", ErrInvalidConfig, kind, s)
}

func unmarshalEnum[T ~uint8](kind string, names []string, node *yaml.Node, dst *T) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := parseEnum[T](kind, names, s)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func (a WarningAction) String() string { return enumString(warningActionNames, a) }

// ParseWarningAction parses "silent", "complain" or "throw_up".
func ParseWarningAction(s string) (WarningAction, error) {
	return parseEnum[WarningAction]("warning action", warningActionNames, s)
}

func (a WarningAction) MarshalYAML() (any, error) { return a.String(), nil }

func (a *WarningAction) UnmarshalYAML(node *yaml.Node) error {
	return unmarshalEnum("warning action", warningActionNames, node, a)
}

func (m WriteMethod) String() string { return enumString(writeMethodNames, m) }

func (m WriteMethod) MarshalYAML() (any, error) { return m.String(), nil }

func (m *WriteMethod) UnmarshalYAML(node *yaml.Node) error {
	return unmarshalEnum("write method", writeMethodNames, node, m)
}

func (f RestFunction) String() string { return enumString(restFunctionNames, f) }

func (f RestFunction) MarshalYAML() (any, error) { return f.String(), nil }

func (f *RestFunction) UnmarshalYAML(node *yaml.Node) error {
	return unmarshalEnum("rest function", restFunctionNames, node, f)
}

func (m LoadMethod) String() string { return enumString(loadMethodNames, m) }

// ParseLoadMethod parses a load method name such as "parallel_read".
func ParseLoadMethod(s string) (LoadMethod, error) {
	return parseEnum[LoadMethod]("load method", loadMethodNames, s)
}

func (m LoadMethod) MarshalYAML() (any, error) { return m.String(), nil }

func (m *LoadMethod) UnmarshalYAML(node *yaml.Node) error {
	return unmarshalEnum("load method", loadMethodNames, node, m)
}

// Config controls loading and building. The zero value is not useful; start
// from DefaultConfig.
type Config struct {
	// ShowProgress logs progress of long loads and builds at info level.
	ShowProgress bool `yaml:"show_progress"`

	// UnknownMissing applies when the statistics carry no <unk>.
	UnknownMissing WarningAction `yaml:"unknown_missing"`
	// SentenceMarkerMissing applies when <s> or </s> is absent.
	SentenceMarkerMissing WarningAction `yaml:"sentence_marker_missing"`
	// PositiveLogProbability applies to log-probabilities above zero.
	PositiveLogProbability WarningAction `yaml:"positive_log_probability"`
	// UnknownMissingLogProb is the <unk> log-probability used when <unk> was
	// synthesized.
	UnknownMissingLogProb float32 `yaml:"unknown_missing_logprob"`

	// ProbingMultiplier sizes hash tables as entries × multiplier buckets.
	ProbingMultiplier float32 `yaml:"probing_multiplier"`
	// TemporaryDirectoryPrefix is where staged and downloaded files go.
	// Empty means the OS temporary directory.
	TemporaryDirectoryPrefix string      `yaml:"temporary_directory_prefix"`
	WriteMethod              WriteMethod `yaml:"write_method"`
	// IncludeVocab stores the vocabulary strings in built models.
	IncludeVocab bool         `yaml:"include_vocab"`
	RestFunction RestFunction `yaml:"rest_function"`

	// ProbBits and BackoffBits are the code widths of quantized tries.
	ProbBits    uint8 `yaml:"prob_bits"`
	BackoffBits uint8 `yaml:"backoff_bits"`
	// PointerBhikshaBits caps the high pointer bits of array tries.
	PointerBhikshaBits uint8 `yaml:"pointer_bhiksha_bits"`

	LoadMethod LoadMethod `yaml:"load_method"`
	// MaxOrder rejects models of a higher order. 0 means MaxOrder.
	MaxOrder int `yaml:"max_order"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ShowProgress:             true,
		UnknownMissing:           Complain,
		SentenceMarkerMissing:    ThrowUp,
		PositiveLogProbability:   ThrowUp,
		UnknownMissingLogProb:    -100,
		ProbingMultiplier:        1.5,
		TemporaryDirectoryPrefix: "",
		WriteMethod:              WriteAfter,
		IncludeVocab:             true,
		RestFunction:             RestMax,
		ProbBits:                 8,
		BackoffBits:              8,
		PointerBhikshaBits:       22,
		LoadMethod:               PopulateOrRead,
		MaxOrder:                 0,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.UnknownMissing > ThrowUp:
		return fmt.Errorf("%w: unknown_missing %d", ErrInvalidConfig, c.UnknownMissing)
	case c.SentenceMarkerMissing > ThrowUp:
		return fmt.Errorf("%w: sentence_marker_missing %d", ErrInvalidConfig, c.SentenceMarkerMissing)
	case c.PositiveLogProbability > ThrowUp:
		return fmt.Errorf("%w: positive_log_probability %d", ErrInvalidConfig, c.PositiveLogProbability)
	case c.UnknownMissingLogProb > 0:
		return fmt.Errorf("%w: unknown_missing_logprob %g is positive", ErrInvalidConfig, c.UnknownMissingLogProb)
	case !(c.ProbingMultiplier > 1):
		return fmt.Errorf("%w: probing_multiplier %g must exceed 1", ErrInvalidConfig, c.ProbingMultiplier)
	case c.WriteMethod > WriteAfter:
		return fmt.Errorf("%w: write_method %d", ErrInvalidConfig, c.WriteMethod)
	case c.RestFunction > RestLower:
		return fmt.Errorf("%w: rest_function %d", ErrInvalidConfig, c.RestFunction)
	case c.ProbBits < quantization.MinBits || c.ProbBits > quantization.MaxBits:
		return fmt.Errorf("%w: prob_bits %d outside [%d, %d]", ErrInvalidConfig, c.ProbBits, quantization.MinBits, quantization.MaxBits)
	case c.BackoffBits < quantization.MinBits+1 || c.BackoffBits > quantization.MaxBits:
		return fmt.Errorf("%w: backoff_bits %d outside [%d, %d]", ErrInvalidConfig, c.BackoffBits, quantization.MinBits+1, quantization.MaxBits)
	case c.PointerBhikshaBits > 32:
		return fmt.Errorf("%w: pointer_bhiksha_bits %d above 32", ErrInvalidConfig, c.PointerBhikshaBits)
	case c.LoadMethod > ParallelRead:
		return fmt.Errorf("%w: load_method %d", ErrInvalidConfig, c.LoadMethod)
	case c.MaxOrder < 0 || c.MaxOrder > format.MaxOrder:
		return fmt.Errorf("%w: max_order %d outside [0, %d]", ErrInvalidConfig, c.MaxOrder, format.MaxOrder)
	}
	return nil
}

func (c Config) maxOrder() int {
	if c.MaxOrder == 0 {
		return format.MaxOrder
	}
	return c.MaxOrder
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &IOError{Path: path, Op: "read config", cause: err}
	}
	return ParseConfig(data)
}

// YAML encodes the config in the format ParseConfig reads.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
