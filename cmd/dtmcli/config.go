package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dtmtools/blehci/pkg/hci"
)

type Config struct {
	Port     string
	Baud     int
	Tag      string
	Timeout  time.Duration
	Retries  int
	LogLevel string
	LogFile  string
}

func defaultConfig() Config {
	return Config{
		Baud:     hci.DefaultBaudRate,
		Tag:      "DUT",
		Timeout:  hci.DefaultTimeout,
		LogLevel: "info",
	}
}

type fileConfig struct {
	Port     string `toml:"port"`
	Baud     int    `toml:"baud"`
	Tag      string `toml:"tag"`
	Timeout  string `toml:"timeout"`
	Retries  int    `toml:"retries"`
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud") {
		cfg.Baud = raw.Baud
	}
	if meta.IsDefined("tag") {
		cfg.Tag = strings.TrimSpace(raw.Tag)
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("retries") {
		cfg.Retries = raw.Retries
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	}
	if meta.IsDefined("log_file") {
		cfg.LogFile = strings.TrimSpace(raw.LogFile)
	}
	return cfg, nil
}
