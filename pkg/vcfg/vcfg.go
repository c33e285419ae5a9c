package vcfg

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sisatech/toml"
)

const (
	configDir      = ".vsparse"
	configFileName = "conf.toml"
)

// Config holds the user's persistent settings for vsparse tools.
type Config struct {
	BlockSize         Bytes  `toml:"block-size,omitempty" json:"block-size,omitempty"`
	Format            string `toml:"format,omitempty" json:"format,omitempty"`
	DeferFooterCommit bool   `toml:"defer-footer-commit,omitempty" json:"defer-footer-commit,omitempty"`
	ReportLevel       string `toml:"report-level,omitempty" json:"report-level,omitempty"`
	CreatorApp        string `toml:"creator-app,omitempty" json:"creator-app,omitempty"`
}

// Load parses TOML config data.
func Load(data []byte) (*Config, error) {
	cfg := new(Config)
	err := toml.Unmarshal(data, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	return cfg, nil
}

// LoadFilepath reads the config file at path and layers it over the
// defaults. A missing file yields the defaults.
func LoadFilepath(path string) (*Config, error) {

	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg, err := Load(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	cfg, err = Merge(Defaults(), cfg)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	return cfg, nil
}

// DefaultPath returns ~/.vsparse/conf.toml.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir, configFileName), nil
}

// LoadDefault loads the config from DefaultPath, falling back to the
// defaults if the home directory cannot be found.
func LoadDefault() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return Defaults(), nil
	}
	return LoadFilepath(path)
}

// Marshal encodes the config as TOML.
func (cfg *Config) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := toml.NewEncoder(buf)
	err := enc.Encode(cfg)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
