package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/hwmon/cmd/ds1624/console"
)

func runSim(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	console.SetOutput(&out, &errOut)
	t.Cleanup(func() { console.SetOutput(os.Stdout, os.Stderr) })
	base := []string{"ds1624", "--adapter", "sim", "--settling", "0s", "--sim-temperature", "25500"}
	code := run(append(base, args...))
	return code, out.String()
}

func TestRun_Temperature(t *testing.T) {
	code, out := runSim(t, "temperature", "--raw")
	assert.Equal(t, 0, code)
	assert.Equal(t, "25496\n", out)
}

func TestRun_ConfigSet(t *testing.T) {
	code, out := runSim(t, "config", "set", "--yes", "0x01")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "config set to")
}

func TestRun_ConfigSetInvalid(t *testing.T) {
	code, _ := runSim(t, "config", "set", "--yes", "zz")
	assert.Equal(t, 1, code)
}

func TestRun_AttrShow(t *testing.T) {
	code, out := runSim(t, "attr", "show", "temperature")
	assert.Equal(t, 0, code)
	assert.Equal(t, "25496\n", out)

	code, _ = runSim(t, "attr", "store", "temperature", "1")
	assert.Equal(t, 1, code, "temperature is read-only")

	code, _ = runSim(t, "attr", "show", "humidity")
	assert.Equal(t, 1, code)
}

func TestRun_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ds1624.yml")
	require.NoError(t, os.WriteFile(path, []byte("adapter: sim\naddress: 0x49\nsettling_time: 0s\n"), 0o644))
	var out bytes.Buffer
	console.SetOutput(&out, &out)
	t.Cleanup(func() { console.SetOutput(os.Stdout, os.Stderr) })

	code := run([]string{"ds1624", "--config", path, "temperature", "--raw"})
	assert.Equal(t, 0, code)
	assert.Equal(t, "21496\n", out.String())
}

func TestRun_InvalidAddress(t *testing.T) {
	code, _ := runSim(t, "--address", "0x20", "temperature")
	assert.Equal(t, 1, code)
}
