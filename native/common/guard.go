// Package common holds helpers shared by the native modules.
package common

import (
	"errors"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when module is switched off in p.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a PauseView fixed at startup, typically from the node
// config's PausedModules list.
type StaticPauses map[string]bool

// NewStaticPauses builds a pause set from module names. Names are matched
// case-insensitively.
func NewStaticPauses(modules ...string) StaticPauses {
	pauses := make(StaticPauses, len(modules))
	for _, module := range modules {
		name := strings.ToLower(strings.TrimSpace(module))
		if name != "" {
			pauses[name] = true
		}
	}
	return pauses
}

func (p StaticPauses) IsPaused(module string) bool {
	return p[strings.ToLower(strings.TrimSpace(module))]
}
