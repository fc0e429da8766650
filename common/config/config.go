package config

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type ConfigSource interface {
	GetValue(key string) interface{}
	Name() string
}

type ConfigOption struct {
	Name         string
	Description  string
	DefaultValue interface{}
	Manager      *ConfigManager

	mu           sync.RWMutex
	loadedValue  interface{}
	loaded       bool
	configSource ConfigSource
}

// LoadValue picks the value from the last added source that has it, falling back to the default
func (opt *ConfigOption) LoadValue() {
	newVal := opt.DefaultValue
	var from ConfigSource

	sources := opt.Manager.Sources()
	for i := len(sources) - 1; i >= 0; i-- {
		v := sources[i].GetValue(opt.Name)
		if v != nil {
			newVal = v
			from = sources[i]
			break
		}
	}

	opt.set(newVal, from)
}

// Set overrides the value, mostly useful in tests
func (opt *ConfigOption) Set(v interface{}) {
	opt.set(v, nil)
}

func (opt *ConfigOption) set(v interface{}, source ConfigSource) {
	// parse ahead of time
	switch opt.DefaultValue.(type) {
	case int:
		v = intVal(v)
	case bool:
		v = boolVal(v)
	}

	opt.mu.Lock()
	opt.loadedValue = v
	opt.loaded = true
	opt.configSource = source
	opt.mu.Unlock()
}

func (opt *ConfigOption) value() interface{} {
	opt.mu.RLock()
	defer opt.mu.RUnlock()

	if !opt.loaded {
		return opt.DefaultValue
	}
	return opt.loadedValue
}

// SourceName returns the name of the source the value was loaded from, or "default"
func (opt *ConfigOption) SourceName() string {
	opt.mu.RLock()
	defer opt.mu.RUnlock()

	if opt.configSource == nil {
		return "default"
	}
	return opt.configSource.Name()
}

func (opt *ConfigOption) GetString() string {
	return strVal(opt.value())
}

func (opt *ConfigOption) GetInt() int {
	return intVal(opt.value())
}

func (opt *ConfigOption) GetBool() bool {
	return boolVal(opt.value())
}

// GetSeconds treats the int value as a number of seconds
func (opt *ConfigOption) GetSeconds() time.Duration {
	return time.Duration(opt.GetInt()) * time.Second
}

type ConfigManager struct {
	mu      sync.RWMutex
	sources []ConfigSource
	Options map[string]*ConfigOption
}

func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		Options: make(map[string]*ConfigOption),
	}
}

func (c *ConfigManager) AddSource(source ConfigSource) {
	c.mu.Lock()
	c.sources = append(c.sources, source)
	c.mu.Unlock()
}

func (c *ConfigManager) Sources() []ConfigSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sources
}

func (c *ConfigManager) RegisterOption(name, desc string, defaultValue interface{}) *ConfigOption {
	opt := &ConfigOption{
		Name:         name,
		Description:  desc,
		DefaultValue: defaultValue,
		Manager:      c,
	}

	c.mu.Lock()
	c.Options[name] = opt
	c.mu.Unlock()
	return opt
}

func (c *ConfigManager) Load() {
	for _, v := range c.sortedOptions() {
		v.LoadValue()
	}
}

func (c *ConfigManager) sortedOptions() []*ConfigOption {
	c.mu.RLock()
	result := make([]*ConfigOption, 0, len(c.Options))
	for _, v := range c.Options {
		result = append(result, v)
	}
	c.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

func strVal(i interface{}) string {
	switch t := i.(type) {
	case string:
		return t
	case int:
		return strconv.FormatInt(int64(t), 10)
	case bool:
		return strconv.FormatBool(t)
	case Stringer:
		return t.String()
	}

	return ""
}

type Stringer interface {
	String() string
}

func intVal(i interface{}) int {
	switch t := i.(type) {
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return int(n)
	case int:
		return t
	case int64:
		return int(t)
	}

	return 0
}

func boolVal(i interface{}) bool {
	switch t := i.(type) {
	case string:
		lower := strings.ToLower(strings.TrimSpace(t))
		if lower == "true" || lower == "yes" || lower == "on" || lower == "enabled" || lower == "1" {
			return true
		}

		return false
	case int:
		return t > 0
	case bool:
		return t
	}

	return false
}

// Singleton holds every option registered through the package level functions
var Singleton = NewConfigManager()

func AddSource(source ConfigSource) { Singleton.AddSource(source) }

func RegisterOption(name, desc string, defaultValue interface{}) *ConfigOption {
	return Singleton.RegisterOption(name, desc, defaultValue)
}

// Load (re)loads every option of Singleton from its sources
func Load() { Singleton.Load() }

// Options returns the options of Singleton sorted by name
func Options() []*ConfigOption { return Singleton.sortedOptions() }
