package metadata

import "fmt"

/**
 * @brief Post-process pass configuration, one [[passes]] table of the
 * engine configuration.
 */
type PassConfig struct {
	/** @brief The pass type registered with the pass factory (blur, bloom...). */
	Type string `toml:"type"`
	/** @brief The instance name. Defaults to the type. */
	Name string `toml:"name"`
	/** @brief Lower priorities run first. */
	Priority int `toml:"priority"`
	/** @brief Whether the pass runs. Defaults to true. */
	Enabled *bool `toml:"enabled"`
	/** @brief Free-form tunables. */
	Params map[string]interface{} `toml:"params"`
}

func (c PassConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c PassConfig) InstanceName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Type
}

// Float reads a numeric tunable. TOML integers are accepted.
func (c PassConfig) Float(name string, def float32) float32 {
	if v, ok := AsFloat(c.Params[name]); ok {
		return v
	}
	return def
}

func (c PassConfig) Int(name string, def int) int {
	if v, ok := AsInt(c.Params[name]); ok {
		return v
	}
	return def
}

func (c PassConfig) Bool(name string, def bool) bool {
	if v, ok := c.Params[name].(bool); ok {
		return v
	}
	return def
}

func (c PassConfig) String(name string, def string) string {
	if v, ok := c.Params[name].(string); ok {
		return v
	}
	return def
}

// Color reads an [r, g, b, a] array tunable.
func (c PassConfig) Color(name string, def [4]float32) [4]float32 {
	if v, ok := AsColor(c.Params[name], def); ok {
		return v
	}
	return def
}

// AsFloat converts a decoded tunable to float32.
func AsFloat(value interface{}) (float32, bool) {
	switch v := value.(type) {
	case float64:
		return float32(v), true
	case float32:
		return v, true
	case int64:
		return float32(v), true
	case int:
		return float32(v), true
	default:
		return 0, false
	}
}

func AsInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int64:
		return int(v), true
	case int:
		return v, true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	default:
		return 0, false
	}
}

// AsColor converts a 3 or 4 element array. Missing components keep def.
func AsColor(value interface{}, def [4]float32) ([4]float32, bool) {
	switch v := value.(type) {
	case [4]float32:
		return v, true
	case []float32:
		if len(v) < 3 {
			return def, false
		}
		out := def
		copy(out[:], v)
		return out, true
	case []interface{}:
		if len(v) < 3 {
			return def, false
		}
		out := def
		for i := 0; i < len(v) && i < 4; i++ {
			f, ok := AsFloat(v[i])
			if !ok {
				return def, false
			}
			out[i] = f
		}
		return out, true
	default:
		return def, false
	}
}

func (c PassConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("pass `%s` has no type", c.Name)
	}
	return nil
}
