package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lsblkSample = `{
   "blockdevices": [
      {"name":"sda", "type":"disk", "size":500107862016, "model":"Samsung SSD 860  "},
      {"name":"sda1", "type":"part", "size":536870912, "model":null},
      {"name":"sdb", "type":"disk", "size":"2000398934016", "model":"WDC WD20EZRZ"},
      {"name":"loop0", "type":"loop", "size":4096, "model":null},
      {"name":"nvme0n1", "type":"disk", "size":1024209543168, "model":null},
      {"name":"sr0", "type":"rom", "size":1073741312, "model":"DVD-RW"}
   ]
}`

func TestParseLsblk(t *testing.T) {
	drives, err := ParseLsblk([]byte(lsblkSample))
	require.NoError(t, err)

	want := []PhysicalDrive{
		{Name: "sda", Path: "/dev/sda", SizeBytes: 500107862016, Model: "Samsung SSD 860", Type: TypeDisk},
		{Name: "sdb", Path: "/dev/sdb", SizeBytes: 2000398934016, Model: "WDC WD20EZRZ", Type: TypeDisk},
		{Name: "nvme0n1", Path: "/dev/nvme0n1", SizeBytes: 1024209543168, Type: TypeDisk},
	}
	assert.Equal(t, want, drives)
}

func TestParseLsblk_NoDisks(t *testing.T) {
	drives, err := ParseLsblk([]byte(`{"blockdevices":[{"name":"loop0","type":"loop","size":0}]}`))
	require.NoError(t, err)
	assert.Empty(t, drives)
}

func TestParseLsblk_Malformed(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"empty", ""},
		{"whitespace", "  \n"},
		{"not json", "NAME TYPE SIZE MODEL\nsda disk 500G foo"},
		{"missing blockdevices", `{"devices":[]}`},
		{"bad size", `{"blockdevices":[{"name":"sda","type":"disk","size":"500G"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLsblk([]byte(tt.out))
			assert.ErrorIs(t, err, ErrMalformedOutput)
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, TypeDisk, classify("disk"))
	assert.Equal(t, TypePartition, classify("part"))
	assert.Equal(t, TypeOther, classify("lvm"))
	assert.Equal(t, TypeOther, classify(""))
}

func TestDevicePath(t *testing.T) {
	assert.Equal(t, "/dev/sda", DevicePath("sda"))
	assert.Equal(t, "/dev/sda", DevicePath("/dev//sda"))
	assert.Equal(t, "/dev/mapper/vg-root", DevicePath("/dev/mapper/vg-root"))
}

func TestFind(t *testing.T) {
	drives, err := ParseLsblk([]byte(lsblkSample))
	require.NoError(t, err)

	d, ok := Find(drives, "sdb")
	require.True(t, ok)
	assert.Equal(t, "/dev/sdb", d.Path)

	d, ok = Find(drives, "/dev/nvme0n1")
	require.True(t, ok)
	assert.Equal(t, "nvme0n1", d.Name)

	_, ok = Find(drives, "sda1")
	assert.False(t, ok)
}
