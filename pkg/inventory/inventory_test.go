package inventory

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offalexp/ceSSHar/internal/testutil"
	"github.com/offalexp/ceSSHar/pkg/models"
)

func TestParseLinesTrimsAndSkipsBlank(t *testing.T) {
	lines, err := ParseLines(strings.NewReader("  show version \n\n\t\nshow ip int brief\r\n   \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"show version", "show ip int brief"}, lines)
}

func TestReadLines(t *testing.T) {
	path := testutil.WriteTestFile(t, "switches.txt", "10.0.0.1\n\n10.0.0.2:2222\n", 0o644)
	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2:2222"}, lines)

	_, err = ReadLines(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

const sampleInventory = `
devices:
  - host: 192.168.1.20
    username: admin
    password: "1234"
    interfaces:
      - GigabitEthernet0/4
      - GigabitEthernet0/11
  - host: core-sw2
    port: 2222
    enable: true
    interfaces: [Gi1/0/1]
`

func TestParseInventory(t *testing.T) {
	inv, err := ParseInventory([]byte(sampleInventory))
	require.NoError(t, err)
	require.Len(t, inv.Devices, 2)

	first := inv.Devices[0]
	assert.Equal(t, "192.168.1.20", first.Host)
	assert.Equal(t, []string{"GigabitEthernet0/4", "GigabitEthernet0/11"}, first.Interfaces)

	defaults := models.Credentials{Username: "ops", Password: "secret"}
	target := first.Target(defaults)
	assert.Equal(t, "admin", target.Credentials.Username)
	assert.Equal(t, "1234", target.Credentials.Password)

	second := inv.Devices[1].Target(defaults)
	assert.Equal(t, "ops", second.Credentials.Username)
	assert.Equal(t, "core-sw2:2222", second.Address())
	assert.True(t, second.Enable)
}

func TestParseInventoryValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "devices: []", "no devices"},
		{"no host", "devices:\n  - interfaces: [Gi0/1]", "has no host"},
		{"no interfaces", "devices:\n  - host: sw1", "lists no interfaces"},
		{"bad port", "devices:\n  - host: sw1\n    port: 70000\n    interfaces: [Gi0/1]", "invalid port"},
		{"bad yaml", "devices: [", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInventory([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadInventory(t *testing.T) {
	path := testutil.WriteTestFile(t, "inventory.yaml", sampleInventory, 0o600)
	inv, err := LoadInventory(path)
	require.NoError(t, err)
	assert.Len(t, inv.Devices, 2)
}
