package memstore

import (
	"encoding/json"
	"fmt"
	"os"

	"safe-pickup-api-server/internal/models"
)

// DirectorySeed là nội dung file JSON nạp sẵn tài xế và người dùng cho server dev.
type DirectorySeed struct {
	Users   []models.User   `json:"users"`
	Drivers []models.Driver `json:"drivers"`
}

// LoadDirectory đọc file seed và trả về Directory đã nạp. path rỗng trả về Directory trống.
func LoadDirectory(path string) (*Directory, error) {
	d := NewDirectory()
	if path == "" {
		return d, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory seed: %w", err)
	}
	var seed DirectorySeed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode directory seed %s: %w", path, err)
	}
	for _, u := range seed.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("directory seed %s: user without id", path)
		}
		d.PutUser(u)
	}
	for _, drv := range seed.Drivers {
		if drv.ID == "" {
			return nil, fmt.Errorf("directory seed %s: driver without id", path)
		}
		d.PutDriver(drv)
	}
	return d, nil
}
