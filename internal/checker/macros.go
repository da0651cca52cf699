package checker

import (
	"strconv"

	"github.com/oceanplexian/vigilo/internal/objects"
)

// ResolveMacros builds the substitution map handed to check commands and
// remote dispatches.
func ResolveMacros(c *objects.Checkable) map[string]string {
	c.Lock()
	defer c.Unlock()

	m := map[string]string{
		"HOSTNAME":     c.HostName,
		"MAXATTEMPTS":  strconv.Itoa(c.MaxCheckAttempts),
		"CHECKATTEMPT": strconv.Itoa(c.CheckAttempt),
	}
	if c.Kind == objects.KindService {
		m["SERVICEDESC"] = c.ShortName
		m["SERVICESTATE"] = objects.ServiceStateName(c.StateRaw)
	} else {
		m["HOSTSTATE"] = objects.HostStateName(c.HostState())
	}
	return m
}
