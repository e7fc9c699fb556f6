package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config holds all orchestration parameters. Keys in the JSON config file
// map 1:1 onto these fields. LogFile is consumed by the caller to build the
// log sink before the run starts; everything else feeds the patch run.
type Config struct {
	UpdateCab          bool   `mapstructure:"UpdateCab"`
	UseOfflineScan     bool   `mapstructure:"UseOfflineScan"`
	LogFile            string `mapstructure:"LogFile"`
	AgeThreshold       int    `mapstructure:"AgeThreshold"`
	CanReboot          bool   `mapstructure:"CanReboot"`
	OfflineServiceName string `mapstructure:"OfflineServiceName"`
	PatchDir           string `mapstructure:"PatchDir"`
	CabDownloadUri     string `mapstructure:"CabDownloadUri"`
	FreeSpaceMinMB     uint64 `mapstructure:"FreeSpaceMinMB"`
	RebootDelaySec     int    `mapstructure:"RebootDelaySec"`
}

// DefaultCabURL is the public download location for the Windows Update
// offline scan catalog (wsusscn2.cab).
const DefaultCabURL = "http://go.microsoft.com/fwlink/?LinkID=74689"

func Default() *Config {
	return &Config{
		UpdateCab:          true,
		UseOfflineScan:     false,
		AgeThreshold:       14,
		CanReboot:          false,
		OfflineServiceName: "Offline Scan Service",
		PatchDir:           defaultPatchDir(),
		CabDownloadUri:     DefaultCabURL,
		FreeSpaceMinMB:     1024,
		RebootDelaySec:     300,
	}
}

// Load reads configuration from cfgFile, or from the default search paths
// when cfgFile is empty. A missing file yields built-in defaults; a supplied
// path that is unreadable or malformed is an error.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("json")
	} else {
		viper.SetConfigName("winpatch")
		viper.SetConfigType("json")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("WINPATCH")

	if err := viper.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return nil, err
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// CabPath is the on-disk location of the offline scan catalog.
func (c *Config) CabPath() string {
	return filepath.Join(c.PatchDir, "wsusscn2.cab")
}

func defaultPatchDir() string {
	if runtime.GOOS == "windows" {
		drive := os.Getenv("SystemDrive")
		if drive == "" {
			drive = "C:"
		}
		return filepath.Join(drive+string(filepath.Separator), "Patching")
	}
	return filepath.Join(os.TempDir(), "winpatch")
}

func configDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("ProgramData"), "winpatch")
	}
	return "/etc/winpatch"
}
