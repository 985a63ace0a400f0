package plan

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// Tables bundles the two per-tier lookup tables. They are kept separate on
// purpose: targets are the minimum package deliverable, limits the monthly cap.
type Tables struct {
	Limits            map[Tier]LimitSet `mapstructure:"limits"`
	CompletionTargets map[Tier]LimitSet `mapstructure:"completionTargets"`
}

func DefaultTables() Tables {
	return Tables{
		Limits:            defaultLimits,
		CompletionTargets: defaultCompletionTargets,
	}
}

// Holder exposes the active plan tables, hot-reloadable from plans.yml.
type Holder struct {
	current atomic.Value // holds Tables
}

// Module provides the plan table holder.
var Module = fx.Provide(NewHolder)

// NewHolder loads plans.yml when present and watches it for changes; without
// a file the compiled-in defaults apply.
func NewHolder() (*Holder, error) {
	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/seohub")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SEOHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &Holder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultTables())
		return holder, nil
	}

	tables, err := unmarshalTables(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(tables)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalTables(v)
		if err != nil {
			log.Printf("[plan-config] reload failed: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[plan-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticHolder returns a holder pinned to the given tables, for tests.
func NewStaticHolder(tables Tables) *Holder {
	holder := &Holder{}
	holder.current.Store(tables)
	return holder
}

func (h *Holder) Get() Tables {
	return h.current.Load().(Tables)
}

// Limits returns the active monthly limits for a tier.
func (h *Holder) Limits(tier Tier) (LimitSet, error) {
	limits, ok := h.Get().Limits[tier]
	if !ok {
		return LimitSet{}, ErrInvalidTier
	}
	return limits, nil
}

// CompletionTargets returns the active completion thresholds for a tier.
func (h *Holder) CompletionTargets(tier Tier) (LimitSet, error) {
	targets, ok := h.Get().CompletionTargets[tier]
	if !ok {
		return LimitSet{}, ErrInvalidTier
	}
	return targets, nil
}

// Progress computes progress against the holder's active limits.
func (h *Holder) Progress(tier Tier, counts LimitSet) (Progress, error) {
	limits, err := h.Limits(tier)
	if err != nil {
		return Progress{}, err
	}
	return buildProgress(tier, limits, counts), nil
}

func unmarshalTables(v *viper.Viper) (Tables, error) {
	defaults := DefaultTables()

	var cfg Tables
	if err := v.UnmarshalKey("plans", &cfg); err != nil {
		return Tables{}, err
	}
	if len(cfg.Limits) == 0 {
		cfg.Limits = defaults.Limits
	}
	if len(cfg.CompletionTargets) == 0 {
		cfg.CompletionTargets = defaults.CompletionTargets
	}
	if err := validateTables(cfg); err != nil {
		return Tables{}, err
	}
	return cfg, nil
}

func validateTables(cfg Tables) error {
	for tier, limits := range cfg.Limits {
		targets, ok := cfg.CompletionTargets[tier]
		if !ok {
			return errors.New("plans.completionTargets missing tier " + string(tier))
		}
		for _, c := range Categories {
			if limits.Get(c) < 0 || targets.Get(c) < 0 {
				return errors.New("plan table values must be non-negative")
			}
		}
	}
	return nil
}
