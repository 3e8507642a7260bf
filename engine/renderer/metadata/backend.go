package metadata

import (
	"fmt"
	"strings"
)

/**
 * @brief Identifies a rendering backend (lighting model). Materials resolve
 * their shader strategy against this value.
 */
type BackendKind int

const (
	/** @brief Classic forward shading, one pass per object. */
	BACKEND_KIND_FORWARD BackendKind = iota
	/** @brief Deferred shading: geometry buffer fill, then a lighting resolve. */
	BACKEND_KIND_DEFERRED
	/** @brief Light pre-pass: light accumulation first, then a material pass. */
	BACKEND_KIND_LIGHT_PRE_PASS
	/** @brief Forward shading into two eye viewports. */
	BACKEND_KIND_STEREO
	BACKEND_KIND_MAX
)

var backendKindNames = [...]string{
	BACKEND_KIND_FORWARD:        "forward",
	BACKEND_KIND_DEFERRED:       "deferred",
	BACKEND_KIND_LIGHT_PRE_PASS: "light_pre_pass",
	BACKEND_KIND_STEREO:         "stereo",
}

func (k BackendKind) String() string {
	if k < 0 || k >= BACKEND_KIND_MAX {
		return fmt.Sprintf("backend(%d)", int(k))
	}
	return backendKindNames[k]
}

// ParseBackendKind accepts the names used in configuration files.
func ParseBackendKind(s string) (BackendKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "lpp", "lightprepass":
		return BACKEND_KIND_LIGHT_PRE_PASS, nil
	}
	for i, n := range backendKindNames {
		if n == name {
			return BackendKind(i), nil
		}
	}
	return BACKEND_KIND_FORWARD, fmt.Errorf("unknown backend kind `%s`", s)
}

func (k BackendKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *BackendKind) UnmarshalText(text []byte) error {
	v, err := ParseBackendKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
