// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package config

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: MDBOOK_SIM_LATENCY_ACK
// overrides sim.latency.ack.
const EnvPrefix = "MDBOOK"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadFile reads a yaml, toml or json file. A .env file next to it, if
// any, is loaded into the environment first.
func LoadFile(path string) (*Store, error) {
	err := godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return fromViper(v), nil
}

// Load reads configuration of the given type ("yaml", "json", "toml").
func Load(r io.Reader, typ string) (*Store, error) {
	v := newViper()
	v.SetConfigType(typ)
	if err := v.ReadConfig(r); err != nil {
		return nil, err
	}
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Store {
	values := make(map[string]interface{})
	for _, k := range v.AllKeys() {
		// Get applies the environment override
		values[k] = v.Get(k)
	}
	return NewStore(values)
}
