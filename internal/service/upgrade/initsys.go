package upgrade

import (
	"errors"
	"fmt"
)

// Service control verbs shared by all init-system command families.
const (
	verbStart = "start"
	verbStop  = "stop"
)

var errUnknownInitSystem = errors.New("unknown init system")

// serviceCommand maps an init-system kind to the command line controlling the
// service. The same mapping serves stop and start, only the verb changes.
func serviceCommand(initSystem, service, verb string) ([]string, error) {
	switch initSystem {
	case "systemd", "systemctl":
		return []string{"systemctl", verb, service}, nil
	case "service", "generic":
		return []string{"service", service, verb}, nil
	case "init.d", "openrc":
		return []string{"/etc/init.d/" + service, verb}, nil
	case "rc.d":
		return []string{"/etc/rc.d/" + service, verb}, nil
	case "upstart", "finit", "initctl":
		return []string{"initctl", verb, service}, nil
	case "epoch":
		return []string{"epoch", verb, service}, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownInitSystem, initSystem)
	}
}
