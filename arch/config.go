// Package arch describes the per-ISA shape of the simulated machine: how many
// register slots exist, how wide a register is, and how wide the widest
// destination value produced by an instruction can be.
//
// A Config is fixed once a register file is built from it.
package arch

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/mipssim/insts"
)

// Byte orders accepted in Config.ByteOrder.
const (
	BigEndian    = "big"
	LittleEndian = "little"
)

// Config holds the register-file geometry of one target ISA.
type Config struct {
	// Name identifies the preset this config was derived from.
	Name string `json:"name" yaml:"name"`

	// Registers is the number of register slots, HI/LO included.
	Registers int `json:"registers" yaml:"registers"`

	// NativeWidth is the width of one register in bits (32 or 64).
	NativeWidth uint `json:"native_width" yaml:"native_width"`

	// DstWidth is the width in bits of the widest destination value, such
	// as a full multiply result destined for HI/LO.
	DstWidth uint `json:"dst_width" yaml:"dst_width"`

	// ByteOrder is "big" or "little".
	ByteOrder string `json:"byte_order" yaml:"byte_order"`
}

// MIPS32 returns the configuration of a 32-bit MIPS core.
func MIPS32() *Config {
	return &Config{
		Name:        "mips32",
		Registers:   insts.MaxReg,
		NativeWidth: 32,
		DstWidth:    64,
		ByteOrder:   BigEndian,
	}
}

// MIPS64 returns the configuration of a 64-bit MIPS core.
func MIPS64() *Config {
	return &Config{
		Name:        "mips64",
		Registers:   insts.MaxReg,
		NativeWidth: 64,
		DstWidth:    128,
		ByteOrder:   BigEndian,
	}
}

// MIPS32Narrow returns a 32-bit configuration whose destination values are
// no wider than a register, so HI/LO cannot be read back as one value.
func MIPS32Narrow() *Config {
	return &Config{
		Name:        "mips32-narrow",
		Registers:   insts.MaxReg,
		NativeWidth: 32,
		DstWidth:    32,
		ByteOrder:   BigEndian,
	}
}

// Preset returns the named preset configuration.
func Preset(name string) (*Config, error) {
	switch strings.ToLower(name) {
	case "", "mips32":
		return MIPS32(), nil
	case "mips64":
		return MIPS64(), nil
	case "mips32-narrow":
		return MIPS32Narrow(), nil
	default:
		return nil, errors.Errorf("unknown preset %q", name)
	}
}

// HasWideDst returns true if destination values are wider than a register,
// which is what makes HI/LO readable as one accumulator.
func (c *Config) HasWideDst() bool {
	return c.DstWidth > c.NativeWidth
}

// Order returns the configured byte order.
func (c *Config) Order() binary.ByteOrder {
	if c.ByteOrder == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// LoadConfig loads a Config from a JSON or YAML file. Fields missing from the
// file keep the values of the preset named by the file's "name" field.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigOver(nil, path)
}

// LoadConfigOver loads a Config from a JSON or YAML file on top of base. A
// file without a "name" keeps every field of base it does not set. A file that
// names a preset starts from that preset but still inherits the byte order of
// base unless it sets one. A nil base behaves like LoadConfig.
func LoadConfigOver(base *Config, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read arch config file")
	}

	unmarshal := json.Unmarshal
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	}

	var header struct {
		Name      string `json:"name" yaml:"name"`
		ByteOrder string `json:"byte_order" yaml:"byte_order"`
	}
	if err := unmarshal(data, &header); err != nil {
		return nil, errors.Wrap(err, "failed to parse arch config")
	}

	var config *Config
	if header.Name == "" && base != nil {
		config = base.Clone()
	} else {
		config, err = Preset(header.Name)
		if err != nil {
			return nil, err
		}
		if base != nil && header.ByteOrder == "" {
			config.ByteOrder = base.ByteOrder
		}
	}

	if err := unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse arch config")
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid arch config %s", path)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON or YAML file, chosen by extension.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "failed to serialize arch config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write arch config file")
	}

	return nil
}

// Validate checks that the geometry can back a register file.
func (c *Config) Validate() error {
	if c.Registers < insts.MaxReg {
		return errors.Errorf("registers must be >= %d", insts.MaxReg)
	}
	if c.NativeWidth != 32 && c.NativeWidth != 64 {
		return errors.New("native_width must be 32 or 64")
	}
	if c.DstWidth < c.NativeWidth {
		return errors.New("dst_width must be >= native_width")
	}
	if c.DstWidth > 2*c.NativeWidth {
		return errors.New("dst_width must be <= 2 * native_width")
	}
	if c.ByteOrder != BigEndian && c.ByteOrder != LittleEndian {
		return errors.New("byte_order must be \"big\" or \"little\"")
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
