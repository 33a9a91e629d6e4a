package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"walkpack/internal/model"
)

// WalkerConfig is a walker entry in directory.yaml.
type WalkerConfig struct {
	ID       string `yaml:"id"`
	UserID   string `yaml:"user_id"`
	Name     string `yaml:"name"`
	PhotoURL string `yaml:"photo_url,omitempty"`
	About    string `yaml:"about,omitempty"`
}

// DogConfig is a dog entry in directory.yaml.
type DogConfig struct {
	ID           string `yaml:"id"`
	OwnerID      string `yaml:"owner_id"`
	Name         string `yaml:"name"`
	Breed        string `yaml:"breed,omitempty"`
	Age          int    `yaml:"age,omitempty"`
	PhotoURL     string `yaml:"photo_url,omitempty"`
	WalkerID     string `yaml:"walker_id,omitempty"`
	MeetAndGreet bool   `yaml:"meet_and_greet_done"`
}

// WalkBlockConfig is a walk block entry in directory.yaml.
type WalkBlockConfig struct {
	ID          string `yaml:"id"`
	WalkerID    string `yaml:"walker_id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Date        string `yaml:"date"`       // "2026-03-10"
	StartTime   string `yaml:"start_time"` // "09:00"
	EndTime     string `yaml:"end_time"`   // "10:00"
	IsGroup     bool   `yaml:"is_group"`
	Capacity    int    `yaml:"capacity"`
}

// Directory is the root of directory.yaml: the master records the booking
// core reads but never writes.
type Directory struct {
	Walkers    []WalkerConfig    `yaml:"walkers"`
	Dogs       []DogConfig       `yaml:"dogs"`
	WalkBlocks []WalkBlockConfig `yaml:"walk_blocks"`
}

// LoadDirectory loads and validates directory fixtures from a YAML file.
func LoadDirectory(path string) (*Directory, error) {
	if path == "" {
		path = "configs/directory.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory config: %w", err)
	}

	var dir Directory
	if err := yaml.Unmarshal(data, &dir); err != nil {
		return nil, fmt.Errorf("parse directory config: %w", err)
	}

	dir.applyDefaults()

	if err := dir.Validate(); err != nil {
		return nil, fmt.Errorf("validate directory config: %w", err)
	}

	return &dir, nil
}

// applyDefaults gives solo blocks without an explicit capacity a capacity of 1.
func (d *Directory) applyDefaults() {
	for i := range d.WalkBlocks {
		if d.WalkBlocks[i].Capacity == 0 && !d.WalkBlocks[i].IsGroup {
			d.WalkBlocks[i].Capacity = 1
		}
	}
}

// Validate checks references and walk block definitions.
func (d *Directory) Validate() error {
	walkers := make(map[string]bool)
	accounts := make(map[string]bool)
	for i, w := range d.Walkers {
		if w.ID == "" {
			return fmt.Errorf("walkers[%d]: id is required", i)
		}
		if walkers[w.ID] {
			return fmt.Errorf("walkers[%d]: duplicate id %s", i, w.ID)
		}
		walkers[w.ID] = true

		if w.UserID == "" {
			return fmt.Errorf("walkers[%d]: user_id is required", i)
		}
		if accounts[w.UserID] {
			return fmt.Errorf("walkers[%d]: account %s already owns a walker profile", i, w.UserID)
		}
		accounts[w.UserID] = true

		if w.Name == "" {
			return fmt.Errorf("walkers[%d]: name is required", i)
		}
	}

	dogs := make(map[string]bool)
	for i, dog := range d.Dogs {
		if dog.ID == "" {
			return fmt.Errorf("dogs[%d]: id is required", i)
		}
		if dogs[dog.ID] {
			return fmt.Errorf("dogs[%d]: duplicate id %s", i, dog.ID)
		}
		dogs[dog.ID] = true

		if dog.OwnerID == "" {
			return fmt.Errorf("dogs[%d]: owner_id is required", i)
		}
		if dog.Name == "" {
			return fmt.Errorf("dogs[%d]: name is required", i)
		}
		if dog.WalkerID != "" && !walkers[dog.WalkerID] {
			return fmt.Errorf("dogs[%d]: unknown walker %s", i, dog.WalkerID)
		}
		if dog.MeetAndGreet && dog.WalkerID == "" {
			return fmt.Errorf("dogs[%d]: meet_and_greet_done requires walker_id", i)
		}
	}

	blocks := make(map[string]bool)
	for i, wb := range d.WalkBlocks {
		if blocks[wb.ID] {
			return fmt.Errorf("walk_blocks[%d]: duplicate id %s", i, wb.ID)
		}
		blocks[wb.ID] = true

		if !walkers[wb.WalkerID] {
			return fmt.Errorf("walk_blocks[%d]: unknown walker %s", i, wb.WalkerID)
		}
		if err := wb.Model().Validate(); err != nil {
			return fmt.Errorf("walk_blocks[%d]: %w", i, err)
		}
	}

	return nil
}

// Model converts the entry into a walk block record.
func (c WalkBlockConfig) Model() *model.WalkBlock {
	return &model.WalkBlock{
		ID:          c.ID,
		WalkerID:    c.WalkerID,
		Title:       c.Title,
		Description: c.Description,
		Date:        c.Date,
		StartTime:   c.StartTime,
		EndTime:     c.EndTime,
		IsGroup:     c.IsGroup,
		Capacity:    c.Capacity,
	}
}

// String returns a summary of the directory.
func (d *Directory) String() string {
	return fmt.Sprintf("Directory: %d walkers, %d dogs, %d walk blocks",
		len(d.Walkers), len(d.Dogs), len(d.WalkBlocks))
}
