package agentconfig

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vpbank/snmpagent/acl"
	"github.com/vpbank/snmpagent/mib"
	"github.com/vpbank/snmpagent/oid"
	"github.com/vpbank/snmpagent/usm"
)

// LoadedConfig is the fully resolved, ready-to-serve configuration.
type LoadedConfig struct {
	Registry     *acl.Registry
	EngineID     mib.EngineID
	SecurityMode mib.SecurityMode
}

// Load reads every configuration directory named in paths and returns a
// fully resolved LoadedConfig. Errors from individual files are logged and
// that file is skipped (the teacher's "operators see a partial config
// rather than a hard failure" policy); Load itself only fails when a
// directory tree as a whole cannot be listed, or the agent settings name an
// invalid engine id or security mode.
func Load(paths Paths, logger *slog.Logger) (*LoadedConfig, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	settings, err := loadAgentSettings(paths.Agent, logger)
	if err != nil {
		return nil, fmt.Errorf("agentconfig: %w", err)
	}

	registry := acl.NewRegistry()

	if err := loadViews(paths.Views, registry, logger); err != nil {
		return nil, fmt.Errorf("agentconfig: %w", err)
	}
	if err := loadCommunities(paths.Communities, registry, logger); err != nil {
		return nil, fmt.Errorf("agentconfig: %w", err)
	}
	if err := loadUsers(paths.Users, registry, settings.engineID, logger); err != nil {
		return nil, fmt.Errorf("agentconfig: %w", err)
	}

	return &LoadedConfig{
		Registry:     registry,
		EngineID:     settings.engineID,
		SecurityMode: settings.securityMode,
	}, nil
}

// ─── Agent settings ─────────────────────────────────────────────────────

type rawAgentSettings struct {
	SecurityMode string `yaml:"security_mode"`
	EngineID     struct {
		VendorID uint32 `yaml:"vendor_id"`
		Format   byte   `yaml:"format"`
		Label    string `yaml:"label"`
	} `yaml:"engine_id"`
}

type agentSettings struct {
	securityMode mib.SecurityMode
	engineID     mib.EngineID
}

// loadAgentSettings merges every file under dir (last file wins per field,
// matching the teacher's loadDeviceDefaults merge style) into the agent's
// security_mode and engine id.
func loadAgentSettings(dir string, logger *slog.Logger) (agentSettings, error) {
	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return agentSettings{}, fmt.Errorf("agent settings directory %q is required: %w", dir, err)
		}
		return agentSettings{}, fmt.Errorf("list agent settings dir %q: %w", dir, err)
	}

	var raw rawAgentSettings
	for _, path := range files {
		var r rawAgentSettings
		if err := decodeFile(path, &r); err != nil {
			logger.Warn("agentconfig: skip malformed agent settings file", "file", path, "error", err.Error())
			continue
		}
		if r.SecurityMode != "" {
			raw.SecurityMode = r.SecurityMode
		}
		if r.EngineID.VendorID != 0 {
			raw.EngineID = r.EngineID
		}
		logger.Debug("agentconfig: loaded agent settings file", "file", path)
	}

	mode, err := mib.ParseSecurityMode(raw.SecurityMode)
	if err != nil {
		return agentSettings{}, err
	}
	engineID, err := mib.NewEngineID(raw.EngineID.VendorID, raw.EngineID.Format, raw.EngineID.Label)
	if err != nil {
		return agentSettings{}, err
	}
	return agentSettings{securityMode: mode, engineID: engineID}, nil
}

// ─── Views ──────────────────────────────────────────────────────────────

type rawViewFile map[string]struct {
	Subtrees []string `yaml:"subtrees"`
}

func loadViews(dir string, registry *acl.Registry, logger *slog.Logger) error {
	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("list views dir %q: %w", dir, err)
	}

	for _, path := range files {
		var raw rawViewFile
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("agentconfig: skip malformed view file", "file", path, "error", err.Error())
			continue
		}
		for name, v := range raw {
			subtrees := make([]oid.OID, 0, len(v.Subtrees))
			for _, s := range v.Subtrees {
				o, err := oid.Parse(s)
				if err != nil {
					logger.Warn("agentconfig: skip malformed subtree in view", "view", name, "subtree", s, "error", err.Error())
					continue
				}
				subtrees = append(subtrees, o)
			}
			registry.AddView(name, subtrees...)
		}
		logger.Debug("agentconfig: loaded views file", "file", path, "count", len(raw))
	}
	return nil
}

// ─── Communities ────────────────────────────────────────────────────────

type rawCommunityFile map[string]struct {
	Read  []string `yaml:"read"`
	Write []string `yaml:"write"`
}

func loadCommunities(dir string, registry *acl.Registry, logger *slog.Logger) error {
	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("list communities dir %q: %w", dir, err)
	}

	for _, path := range files {
		var raw rawCommunityFile
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("agentconfig: skip malformed community file", "file", path, "error", err.Error())
			continue
		}
		for name, c := range raw {
			registry.AddCommunity(name)
			associateAll(registry, name, c.Read, acl.AccessRead, logger)
			associateAll(registry, name, c.Write, acl.AccessWrite, logger)
		}
		logger.Debug("agentconfig: loaded communities file", "file", path, "count", len(raw))
	}
	return nil
}

// ─── Users ──────────────────────────────────────────────────────────────

type rawUserFile map[string]rawUserEntry

type rawUserEntry struct {
	AuthProtocol   string   `yaml:"auth_protocol"`
	AuthPassphrase string   `yaml:"auth_passphrase"`
	PrivProtocol   string   `yaml:"priv_protocol"`
	PrivPassphrase string   `yaml:"priv_passphrase"`
	Read           []string `yaml:"read"`
	Write          []string `yaml:"write"`
}

func loadUsers(dir string, registry *acl.Registry, engineID mib.EngineID, logger *slog.Logger) error {
	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("list users dir %q: %w", dir, err)
	}

	for _, path := range files {
		var raw rawUserFile
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("agentconfig: skip malformed user file", "file", path, "error", err.Error())
			continue
		}
		for name, e := range raw {
			var local acl.User
			if err := localizeUser(&local, e, engineID); err != nil {
				logger.Warn("agentconfig: skip user with bad key material", "user", name, "error", err.Error())
				continue
			}
			u := registry.AddUser(name)
			u.AuthProtocol, u.AuthKey = local.AuthProtocol, local.AuthKey
			u.PrivProtocol, u.PrivKey = local.PrivProtocol, local.PrivKey
			associateAll(registry, name, e.Read, acl.AccessRead, logger)
			associateAll(registry, name, e.Write, acl.AccessWrite, logger)
		}
		logger.Debug("agentconfig: loaded users file", "file", path, "count", len(raw))
	}
	return nil
}

// localizeUser resolves e's auth/priv protocol names and localizes both
// keys (§4.4) against engineID, filling u in place.
func localizeUser(u *acl.User, e rawUserEntry, engineID mib.EngineID) error {
	var authMode usm.AuthMode
	switch e.AuthProtocol {
	case "", "none":
		u.AuthProtocol = acl.AuthNone
	case "md5":
		u.AuthProtocol, authMode = acl.AuthMD5, usm.AuthModeMD5
	case "sha1":
		u.AuthProtocol, authMode = acl.AuthSHA1, usm.AuthModeSHA1
	default:
		return fmt.Errorf("unknown auth_protocol %q", e.AuthProtocol)
	}
	if u.AuthProtocol != acl.AuthNone {
		key, err := usm.LocalizeKey(e.AuthPassphrase, engineID, authMode)
		if err != nil {
			return fmt.Errorf("localizing auth key: %w", err)
		}
		u.AuthKey = key
	}

	switch e.PrivProtocol {
	case "", "none":
		u.PrivProtocol = acl.PrivNone
		return nil
	case "aes":
		u.PrivProtocol = acl.PrivAES
	default:
		return fmt.Errorf("unknown priv_protocol %q", e.PrivProtocol)
	}
	if u.AuthProtocol == acl.AuthNone {
		return fmt.Errorf("priv_protocol set without an auth_protocol")
	}
	full, err := usm.LocalizeKey(e.PrivPassphrase, engineID, authMode)
	if err != nil {
		return fmt.Errorf("localizing priv key: %w", err)
	}
	if len(full) < 16 {
		return fmt.Errorf("localized priv key shorter than 16 bytes")
	}
	u.PrivKey = full[:16]
	return nil
}

func associateAll(registry *acl.Registry, principal string, views []string, attr acl.Access, logger *slog.Logger) {
	for _, v := range views {
		if err := registry.Associate(v, principal, attr); err != nil {
			logger.Warn("agentconfig: skip association", "principal", principal, "view", v, "error", err.Error())
		}
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────

// yamlFiles returns all *.yml / *.yaml files under dir, sorted by path.
func yamlFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext == ".yml" || ext == ".yaml" {
			paths = append(paths, p)
		}
		return nil
	})
	return paths, err
}

// decodeFile opens path and unmarshals its YAML content into out.
func decodeFile(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(false)
	return dec.Decode(out)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
