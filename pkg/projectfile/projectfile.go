// Package projectfile reads project definitions from YAML and applies them
// through an energymodel.Store.
package projectfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/example/dc-energy/pkg/energymodel"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var configKinds = []energymodel.Kind{
	energymodel.KindDatahall,
	energymodel.KindLighting,
	energymodel.KindTransformer,
	energymodel.KindUPS,
	energymodel.KindCRAH,
	energymodel.KindCHWPump,
	energymodel.KindChilledWater,
	energymodel.KindChiller,
}

// Definition is one project file.
type Definition struct {
	Datacenter DatacenterRef `yaml:"datacenter"`
	Project    string        `yaml:"project"`
	Energy     EnergyInputs  `yaml:"energy"`

	Datahall     *energymodel.Datahall            `yaml:"datahall"`
	Lighting     *energymodel.Lighting            `yaml:"lighting"`
	Transformer  *energymodel.Transformer         `yaml:"transformer"`
	UPS          *energymodel.UPS                 `yaml:"ups"`
	CRAH         *energymodel.CRAH                `yaml:"crah"`
	CHWPump      *energymodel.CHWPump             `yaml:"chw_pump"`
	ChilledWater *energymodel.ChilledWaterSetting `yaml:"chilled_water_settings"`
	Chiller      *energymodel.Chiller             `yaml:"chiller_settings"`

	// Path is the file the definition was read from.
	Path string `yaml:"-"`
}

type DatacenterRef struct {
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
}

// EnergyInputs are the measured annual figures, in kWh.
type EnergyInputs struct {
	ITKWh float64 `yaml:"e_it_input_kwh"`
	DCKWh float64 `yaml:"e_dc_input_kwh"`
}

// Configs lists the configured subsystems in save order.
func (d *Definition) Configs() []energymodel.Config {
	var out []energymodel.Config
	if d.Datahall != nil {
		out = append(out, d.Datahall)
	}
	if d.Lighting != nil {
		out = append(out, d.Lighting)
	}
	if d.Transformer != nil {
		out = append(out, d.Transformer)
	}
	if d.UPS != nil {
		out = append(out, d.UPS)
	}
	if d.CRAH != nil {
		out = append(out, d.CRAH)
	}
	if d.CHWPump != nil {
		out = append(out, d.CHWPump)
	}
	if d.ChilledWater != nil {
		out = append(out, d.ChilledWater)
	}
	if d.Chiller != nil {
		out = append(out, d.Chiller)
	}
	return out
}

// Validate checks names, inputs and every subsystem configuration.
func (d *Definition) Validate() error {
	if d.Datacenter.Name == "" {
		return errors.New("datacenter.name is required")
	}
	if d.Project == "" {
		return errors.New("project is required")
	}
	if err := energymodel.ValidateEnergyInputs(d.Energy.ITKWh, d.Energy.DCKWh); err != nil {
		return err
	}
	for _, cfg := range d.Configs() {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Load reads and validates a project file. Unknown keys are rejected.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("parsing project YAML %s: %w", path, err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("project file %s: %w", path, err)
	}
	def.Path = path
	return &def, nil
}

// LoadDir loads every *.yaml and *.yml file in dir, ordered by file name.
func LoadDir(dir string) ([]*Definition, error) {
	paths, err := projectPaths(dir)
	if err != nil {
		return nil, err
	}

	defs := make([]*Definition, 0, len(paths))
	for _, p := range paths {
		def, err := Load(p)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func projectPaths(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("reading project directory: %w", err)
	}

	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}

// Applier writes definitions into a store. A definition whose datacenter
// and project names already exist in the store updates that project instead
// of creating another one.
type Applier struct {
	store       energymodel.Store
	logger      *zap.Logger
	datacenters map[string]energymodel.Datacenter
}

func NewApplier(store energymodel.Store, logger *zap.Logger) *Applier {
	return &Applier{
		store:       store,
		logger:      logger,
		datacenters: make(map[string]energymodel.Datacenter),
	}
}

func (a *Applier) datacenter(ctx context.Context, ref DatacenterRef) (energymodel.Datacenter, error) {
	if dc, ok := a.datacenters[ref.Name]; ok {
		return dc, nil
	}

	dc, err := a.store.FindDatacenter(ctx, ref.Name)
	if errors.Is(err, energymodel.ErrDatacenterNotFound) {
		dc, err = a.store.CreateDatacenter(ctx, ref.Name, ref.Location)
	}
	if err != nil {
		return energymodel.Datacenter{}, err
	}
	a.datacenters[ref.Name] = dc
	return dc, nil
}

func findProject(projects []energymodel.Project, name string) (energymodel.Project, bool) {
	for _, p := range projects {
		if p.Name == name {
			return p, true
		}
	}
	return energymodel.Project{}, false
}

// Apply writes the project's configurations and energy inputs in one store
// update, which an attached engine follows with a single recalculation. The
// project is created first when the datacenter has none with that name. A
// project created here is removed again when the update fails.
func (a *Applier) Apply(ctx context.Context, def *Definition) (energymodel.Project, error) {
	dc, err := a.datacenter(ctx, def.Datacenter)
	if err != nil {
		return energymodel.Project{}, err
	}

	projects, err := a.store.ListProjects(ctx, dc.ID)
	if err != nil {
		return energymodel.Project{}, err
	}
	p, existing := findProject(projects, def.Project)
	if !existing {
		p, err = a.store.CreateProject(ctx, dc.ID, def.Project)
		if err != nil {
			return energymodel.Project{}, err
		}
	}

	if err := a.Sync(ctx, p.ID, def); err != nil {
		if !existing {
			if rmErr := a.Remove(ctx, p.ID); rmErr != nil {
				a.logger.Warn("Failed to remove partially applied project",
					zap.String("project", p.ID),
					zap.Error(rmErr))
			}
		}
		return energymodel.Project{}, err
	}

	a.logger.Info("Applied project file",
		zap.String("file", def.Path),
		zap.String("datacenter", dc.Name),
		zap.String("project", p.ID),
		zap.Bool("existing", existing),
		zap.Int("configs", len(def.Configs())))
	return p, nil
}

// Sync makes an existing project match def: configurations present in def
// are saved, absent ones removed, and the energy inputs replaced.
func (a *Applier) Sync(ctx context.Context, projectID string, def *Definition) error {
	return a.store.Update(ctx, projectID, func(r *energymodel.Records) error {
		present := make(map[energymodel.Kind]bool)
		for _, cfg := range def.Configs() {
			present[cfg.Kind()] = true
			if err := r.PutConfig(cfg); err != nil {
				return fmt.Errorf("saving %s: %w", cfg.Kind(), err)
			}
		}
		for _, k := range configKinds {
			if !present[k] {
				r.RemoveConfig(k)
			}
		}
		if err := r.SetEnergyInputs(def.Energy.ITKWh, def.Energy.DCKWh); err != nil {
			return fmt.Errorf("saving energy inputs: %w", err)
		}
		return nil
	})
}

// Remove deletes a project created by Apply.
func (a *Applier) Remove(ctx context.Context, projectID string) error {
	return a.store.DeleteProject(ctx, projectID)
}

// Datacenter returns the datacenter created for name, if any.
func (a *Applier) Datacenter(name string) (energymodel.Datacenter, bool) {
	dc, ok := a.datacenters[name]
	return dc, ok
}
