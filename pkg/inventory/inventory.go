// Package inventory enumerates the physical storage devices on the host.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/securewipe/wipe-agent/pkg/errors"
)

var (
	// ErrToolMissing means the block-device listing tool is not installed.
	ErrToolMissing = errors.New("inventory tool not found")
	// ErrMalformedOutput means the tool ran but its output could not be parsed.
	ErrMalformedOutput = errors.New("malformed inventory output")
	// ErrUnsupportedPlatform is returned where no listing facility exists.
	ErrUnsupportedPlatform = errors.New("device inventory not supported on this platform")
)

// DefaultTool is the block-device listing binary used on Linux.
const DefaultTool = "lsblk"

// DeviceType classifies a block device.
type DeviceType string

const (
	TypeDisk      DeviceType = "disk"
	TypePartition DeviceType = "partition"
	TypeOther     DeviceType = "other"
)

// PhysicalDrive is one whole device reported by the host.
type PhysicalDrive struct {
	Name      string
	Path      string
	SizeBytes int64
	Model     string
	Type      DeviceType
}

// Lister enumerates physical drives.
type Lister interface {
	ListPhysicalDrives(ctx context.Context) ([]PhysicalDrive, error)
}

type lsblkDevice struct {
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Size  json.RawMessage `json:"size"`
	Model *string         `json:"model"`
}

type lsblkOutput struct {
	Blockdevices []lsblkDevice `json:"blockdevices"`
}

// ParseLsblk decodes `lsblk -J -b` output and keeps whole disks only.
// Size may be encoded as a number or a string depending on the lsblk version.
func ParseLsblk(out []byte) ([]PhysicalDrive, error) {
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, errors.Mark(errors.New("empty output"), ErrMalformedOutput)
	}

	var data lsblkOutput
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to parse lsblk output"), ErrMalformedOutput)
	}
	if data.Blockdevices == nil {
		return nil, errors.Mark(errors.New("missing blockdevices"), ErrMalformedOutput)
	}

	drives := make([]PhysicalDrive, 0, len(data.Blockdevices))
	for _, dev := range data.Blockdevices {
		if classify(dev.Type) != TypeDisk || dev.Name == "" {
			continue
		}

		size, err := parseSize(dev.Size)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "invalid size for %s", dev.Name), ErrMalformedOutput)
		}

		drive := PhysicalDrive{
			Name:      dev.Name,
			Path:      DevicePath(dev.Name),
			SizeBytes: size,
			Type:      TypeDisk,
		}
		if dev.Model != nil {
			drive.Model = strings.TrimSpace(*dev.Model)
		}
		drives = append(drives, drive)
	}
	return drives, nil
}

// DevicePath maps a kernel device name to its node under /dev.
func DevicePath(name string) string {
	if strings.HasPrefix(name, "/") {
		return filepath.Clean(name)
	}
	return "/dev/" + name
}

// Find returns the drive whose name or path equals target.
func Find(drives []PhysicalDrive, target string) (PhysicalDrive, bool) {
	for _, d := range drives {
		if d.Name == target || d.Path == target {
			return d, true
		}
	}
	return PhysicalDrive{}, false
}

func classify(t string) DeviceType {
	switch t {
	case "disk":
		return TypeDisk
	case "part":
		return TypePartition
	default:
		return TypeOther
	}
}

func parseSize(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	return strconv.ParseInt(s, 10, 64)
}
