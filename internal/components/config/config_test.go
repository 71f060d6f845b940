package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl string `json:"base_url"`
	File    string `json:"file"`
	Retries *uint8 `json:"retries"`
	Account struct {
		Csl string `json:"csl"`
		Hsl string `json:"hsl"`
	} `json:"account"`
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestLocalPath(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "sensorlog.json5", expected: "sensorlog.local.json5"},
		{input: "/etc/sensorlog/config.json5", expected: "/etc/sensorlog/config.local.json5"},
		{input: "config", expected: "config.local"},
	}
	for _, row := range table {
		require.Equal(t, row.expected, LocalPath(row.input))
	}
}

func TestReadMergesLocal(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "sensorlog.json5")

	writeFile(t, name, `{
		// shared defaults
		base_url: "http://vpktc.eu",
		file: "data.csv",
		account: { csl: "1234" },
	}`)
	writeFile(t, LocalPath(name), `{
		retries: 0,
		account: { hsl: "secret" },
	}`)

	cfg, err := Read[testConfig](name)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "http://vpktc.eu", cfg.BaseUrl)
	require.Equal(t, "data.csv", cfg.File)
	require.Equal(t, "1234", cfg.Account.Csl)
	require.Equal(t, "secret", cfg.Account.Hsl)
	require.NotNil(t, cfg.Retries)
	require.Equal(t, uint8(0), *cfg.Retries)
}

func TestReadOnlyLocal(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "sensorlog.json5")
	writeFile(t, LocalPath(name), `{file: "local.csv"}`)

	cfg, err := Read[testConfig](name)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "local.csv", cfg.File)
}

func TestReadMissing(t *testing.T) {
	_, err := Read[testConfig](filepath.Join(t.TempDir(), "nope.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadInvalid(t *testing.T) {
	name := filepath.Join(t.TempDir(), "broken.json5")
	writeFile(t, name, `{file: `)

	_, err := Read[testConfig](name)
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrNotExist)
}

func TestOverlay(t *testing.T) {
	dst := testConfig{BaseUrl: "http://vpktc.eu", File: "data.csv"}
	err := Overlay(&dst, testConfig{File: "other.csv"})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "http://vpktc.eu", dst.BaseUrl)
	require.Equal(t, "other.csv", dst.File)
}

func TestOverlayZeroPointer(t *testing.T) {
	five := uint8(5)
	zero := uint8(0)
	dst := testConfig{Retries: &five}

	err := Overlay(&dst, testConfig{Retries: &zero})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, uint8(0), *dst.Retries)
	require.Equal(t, uint8(5), five)
}
