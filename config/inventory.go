package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/evcharge/core/model"
	"github.com/kilianp07/evcharge/core/profiles"
)

// InventoryFile is the YAML layout of an equipment inventory.
type InventoryFile struct {
	EVs     []model.EV     `yaml:"evs"`
	EVSEs   []model.EVSE   `yaml:"evses"`
	Ramping []RampingEntry `yaml:"ramping"`
}

// RampingEntry sets custom DCFC ramping for an EV type, or for one EV/EVSE
// pair when EVSE is set.
type RampingEntry struct {
	EV               string `yaml:"ev"`
	EVSE             string `yaml:"evse"`
	profiles.Ramping `yaml:",inline"`
}

// LoadInventory reads an inventory file and returns it with the factory
// options its ramping entries imply. An empty path returns the default
// inventory.
func LoadInventory(path string) (model.Inventory, []profiles.Option, error) {
	if path == "" {
		return model.DefaultInventory(), nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Inventory{}, nil, err
	}
	return ParseInventory(data)
}

// ParseInventory decodes YAML inventory data.
func ParseInventory(data []byte) (model.Inventory, []profiles.Option, error) {
	var f InventoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return model.Inventory{}, nil, fmt.Errorf("inventory: %w", err)
	}
	inv, err := model.NewInventory(f.EVs, f.EVSEs)
	if err != nil {
		return model.Inventory{}, nil, err
	}
	var opts []profiles.Option
	for i, r := range f.Ramping {
		if _, err := inv.EV(r.EV); err != nil {
			return model.Inventory{}, nil, fmt.Errorf("ramping entry %d: %w", i, err)
		}
		if r.EVSE == "" {
			opts = append(opts, profiles.WithEVRamping(r.EV, r.Ramping))
			continue
		}
		if _, err := inv.EVSE(r.EVSE); err != nil {
			return model.Inventory{}, nil, fmt.Errorf("ramping entry %d: %w", i, err)
		}
		opts = append(opts, profiles.WithPairRamping(r.EV, r.EVSE, r.Ramping))
	}
	return inv, opts, nil
}
