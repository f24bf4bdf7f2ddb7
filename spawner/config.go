package spawner

import (
	"fmt"

	"github.com/jrsteele09/go-spawn-hub/internal/config"
)

const (
	KindLocal     = "local"
	KindInProcess = "inprocess"
)

// FromConfig builds the factory and default options described by spec.
func FromConfig(spec config.SpawnerSpec) (Factory, Options, error) {
	defaults := Options{
		Debug:             spec.Debug,
		DisableUserConfig: spec.DisableUserConfig,
	}
	switch spec.Kind {
	case "", KindLocal:
		if len(spec.Command) == 0 {
			return nil, Options{}, fmt.Errorf("spawner %q needs a command", KindLocal)
		}
		return LocalFactory(spec.Command, spec.Env), defaults, nil
	case KindInProcess:
		defaults.Env = spec.Env
		return InProcessFactory(), defaults, nil
	}
	return nil, Options{}, fmt.Errorf("unknown spawner kind %q", spec.Kind)
}
