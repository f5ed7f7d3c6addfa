package registry

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/faaxis/advisor-calc/internal/model"
)

// File is the YAML layout of a registry seed file.
type File struct {
	Deals      []model.FirmDeal      `yaml:"deals"`
	Parameters []model.FirmParameter `yaml:"parameters"`
}

// LoadFile reads a YAML seed file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read fixture")
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "registry: parse fixture %s", path)
	}
	for i := range f.Deals {
		if err := f.Deals[i].Validate(); err != nil {
			return nil, eris.Wrapf(err, "registry: fixture deal %d (%s)", i, f.Deals[i].Firm)
		}
	}
	return &f, nil
}

// FileSource reads the registry from a YAML seed file on every snapshot.
type FileSource struct {
	Path string
}

// Snapshot implements Source.
func (s FileSource) Snapshot(context.Context) ([]model.FirmDeal, []model.FirmParameter, error) {
	f, err := LoadFile(s.Path)
	if err != nil {
		return nil, nil, err
	}
	return f.Deals, f.Parameters, nil
}
