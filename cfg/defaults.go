package cfg

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Persisted defaults can be set in 2 ways:
//
//  1. Via YAML config file under $HOME/.replayengine/defaults.yaml, one
//     profile per top-level key. For example:
//
//     ```yaml
//     default:
//       intf1: eth0
//       intf2: eth1
//       speed_mode: multiplier
//       speed_value: "1.0"
//       mtu: "1500"
//     ```
//
//  2. Via environment variables REPLAYENGINE_INTF1, REPLAYENGINE_INTF2, etc.
var defaults = viper.New()

const defaultsFileName = "defaults"

func init() {
	initCfgDir()
	initDefaults()
}

func initDefaults() {
	defaults.SetConfigType("yaml")
	defaults.AddConfigPath(cfgDir)
	defaults.SetConfigName(defaultsFileName)

	defaults.AutomaticEnv()
	defaults.SetEnvPrefix("REPLAYENGINE")
	defaults.BindEnv("default.intf1", "REPLAYENGINE_INTF1")
	defaults.BindEnv("default.intf2", "REPLAYENGINE_INTF2")
	defaults.BindEnv("default.speed_mode", "REPLAYENGINE_SPEED_MODE")
	defaults.BindEnv("default.speed_value", "REPLAYENGINE_SPEED_VALUE")
	defaults.BindEnv("default.mtu", "REPLAYENGINE_MTU")

	if err := defaults.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No persisted defaults yet; every value below falls back to its
			// CLI-default (cmd/internal/replay applies its own zero-value
			// handling for an empty string / zero).
		} else {
			os.Stderr.WriteString("failed to read persisted defaults: " + err.Error() + "\n")
		}
	}
}

// writeDefaults persists keyValueMap under the given profile, creating the
// YAML file on first use.
func writeDefaults(profile string, keyValueMap map[string]string) error {
	if profile != "default" {
		return errors.Errorf("non-default profile not supported yet")
	}

	path := GetDefaultsConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL, 0600); err != nil {
			return errors.Wrapf(err, "failed to create %s", path)
		} else {
			f.Close()
		}
	} else if err != nil {
		return errors.Wrapf(err, "failed to stat %s", path)
	}

	for key, value := range keyValueMap {
		defaults.Set(profile+"."+key, value)
	}
	return defaults.WriteConfig()
}

func GetDefaultsConfigPath() string {
	return cfgDirJoin(defaultsFileName + ".yaml")
}

// GetDefaultInterfaces returns the persisted primary/secondary egress names,
// empty if unset.
func GetDefaultInterfaces() (string, string) {
	return defaults.GetString("default.intf1"), defaults.GetString("default.intf2")
}

// WriteDefaultInterfaces persists the primary/secondary egress names so
// future invocations don't need --intf1/--intf2 repeated.
func WriteDefaultInterfaces(intf1, intf2 string) error {
	return writeDefaults("default", map[string]string{
		"intf1": intf1,
		"intf2": intf2,
	})
}

// GetDefaultSpeed returns the persisted speed mode name and value, empty if
// unset.
func GetDefaultSpeed() (string, string) {
	return defaults.GetString("default.speed_mode"), defaults.GetString("default.speed_value")
}

// WriteDefaultSpeed persists a speed mode/value pair as the default for
// future invocations.
func WriteDefaultSpeed(mode, value string) error {
	return writeDefaults("default", map[string]string{
		"speed_mode":  mode,
		"speed_value": value,
	})
}
