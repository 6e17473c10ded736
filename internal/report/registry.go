package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"cloudtally/internal/inventory"
)

// Report kind argument names
const (
	KindCloudServices   = "cloud-services"
	KindVirtualMachines = "virtual-machines"
	KindComputeRoles    = "compute-roles"
)

// Source runs the collections a report kind is built from
type Source interface {
	CollectCloudServices(ctx context.Context) inventory.Result[inventory.CloudServiceSet]
	CollectVirtualMachines(ctx context.Context) inventory.Result[inventory.VirtualMachineSet]
	CollectComputeRoles(ctx context.Context) inventory.Result[inventory.ComputeRoleSet]
}

// Kind is a report that can be selected on the command line
type Kind struct {
	// ArgumentName is the command-line name of the kind
	ArgumentName string
	// Label is the human-readable name
	Label string
	// Build collects and assembles the report
	Build func(ctx context.Context, src Source, mode TotalMode) *Report
}

// Registry maintains the available report kinds in registration order
type Registry struct {
	kinds []Kind
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a kind to the registry
func (r *Registry) Register(k Kind) error {
	if k.ArgumentName == "" || k.Build == nil {
		return fmt.Errorf("report kind requires an argument name and a build function")
	}
	if _, exists := r.lookup(k.ArgumentName); exists {
		return fmt.Errorf("report kind with argument name '%s' already registered", k.ArgumentName)
	}
	r.kinds = append(r.kinds, k)
	return nil
}

// Get retrieves a kind by argument name or label, ignoring case
func (r *Registry) Get(identifier string) (Kind, error) {
	if k, ok := r.lookup(identifier); ok {
		return k, nil
	}
	return Kind{}, fmt.Errorf("no report kind found for identifier '%s'", identifier)
}

func (r *Registry) lookup(identifier string) (Kind, bool) {
	id := strings.ToLower(strings.TrimSpace(identifier))
	return lo.Find(r.kinds, func(k Kind) bool {
		return strings.ToLower(k.ArgumentName) == id || strings.ToLower(k.Label) == id
	})
}

// List returns the registered argument names in registration order
func (r *Registry) List() []string {
	return lo.Map(r.kinds, func(k Kind, _ int) string { return k.ArgumentName })
}

// Kinds returns the registered kinds in registration order
func (r *Registry) Kinds() []Kind {
	return append([]Kind(nil), r.kinds...)
}

// Select resolves a comma-separated kind list. Empty or "all" selects every
// kind. Unknown names are returned separately; duplicates are dropped.
func (r *Registry) Select(list string) ([]Kind, []string) {
	names := lo.Compact(lo.Map(strings.Split(list, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
	if len(names) == 0 || (len(names) == 1 && strings.EqualFold(names[0], "all")) {
		return r.Kinds(), nil
	}

	var selected []Kind
	var invalid []string
	for _, name := range names {
		k, ok := r.lookup(name)
		if !ok {
			invalid = append(invalid, name)
			continue
		}
		selected = append(selected, k)
	}
	selected = lo.UniqBy(selected, func(k Kind) string { return k.ArgumentName })
	return selected, invalid
}

// DefaultRegistry holds the three inventory reports
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, k := range []Kind{
		{
			ArgumentName: KindCloudServices,
			Label:        "Cloud Services",
			Build: func(ctx context.Context, src Source, _ TotalMode) *Report {
				return AssembleCloudServices(src.CollectCloudServices(ctx))
			},
		},
		{
			ArgumentName: KindVirtualMachines,
			Label:        "Virtual Machines",
			Build: func(ctx context.Context, src Source, mode TotalMode) *Report {
				return AssembleVirtualMachines(src.CollectVirtualMachines(ctx), mode)
			},
		},
		{
			ArgumentName: KindComputeRoles,
			Label:        "Compute Roles",
			Build: func(ctx context.Context, src Source, mode TotalMode) *Report {
				return AssembleComputeRoles(src.CollectComputeRoles(ctx), mode)
			},
		},
	} {
		if err := r.Register(k); err != nil {
			panic(err)
		}
	}
	return r
}
