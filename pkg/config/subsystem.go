package config

import "sync"

var localSubsystems sync.Map

func SupportSubsystem(system string) bool {
	if val, ok := localSubsystems.Load(system); ok {
		return val.(bool)
	}
	c := GetConfig()
	if c == nil {
		return false
	}
	for _, subsystem := range c.Subsystems {
		if system == subsystem {
			return true
		}
	}
	return false
}

func Subsystems() []string {
	c := GetConfig()
	if c == nil {
		return nil
	}
	return c.Subsystems
}

func EnableSubsystem(system string) {
	localSubsystems.Store(system, true)
}

func DisableSubsystem(system string) {
	localSubsystems.Store(system, false)
}
