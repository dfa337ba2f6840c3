// Package agentconfig loads the YAML directory trees that describe an
// agent's access-control graph (views, communities, users) and its
// top-level security settings (security_mode, engine id) into a populated
// acl.Registry, in the teacher's multi-directory-merge style
// (pkg/snmpcollector/config/loader.go).
package agentconfig

import "os"

// Paths holds the directory (or, for Agent, file-tree) locations for every
// configuration section. Each directory is scanned recursively for *.yml /
// *.yaml files; a missing Views, Communities, or Users directory is treated
// as empty, not an error, so partial deployments (e.g. v1/v2c-only, no
// users.yaml) work unmodified. The Agent directory is required: Load fails
// when it is missing.
type Paths struct {
	Views       string // AGENT_VIEW_DEFINITIONS_DIRECTORY_PATH
	Communities string // AGENT_COMMUNITY_DEFINITIONS_DIRECTORY_PATH
	Users       string // AGENT_USER_DEFINITIONS_DIRECTORY_PATH
	Agent       string // AGENT_SETTINGS_DIRECTORY_PATH (security_mode, engine_id)
}

// PathsFromEnv reads each path from its environment variable, falling back
// to the documented default when unset or empty.
func PathsFromEnv() Paths {
	return Paths{
		Views:       envOr("AGENT_VIEW_DEFINITIONS_DIRECTORY_PATH", "/etc/snmpagent/views"),
		Communities: envOr("AGENT_COMMUNITY_DEFINITIONS_DIRECTORY_PATH", "/etc/snmpagent/communities"),
		Users:       envOr("AGENT_USER_DEFINITIONS_DIRECTORY_PATH", "/etc/snmpagent/users"),
		Agent:       envOr("AGENT_SETTINGS_DIRECTORY_PATH", "/etc/snmpagent/agent"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
