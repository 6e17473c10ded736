package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloudtally/internal/azure"
	"cloudtally/internal/rates"
	"cloudtally/internal/worker"
)

// ClientFactory opens a provider client. Each collection opens its own.
type ClientFactory func(ctx context.Context) (azure.InventoryClient, error)

// Logger receives collection events
type Logger interface {
	CollectionStart(kind, subscription string)
	CollectionFault(kind, service string, err error)
	CollectionComplete(kind, subscription string, count, faults int)
	Debug(msg string, data ...interface{})
}

// Recorder receives collection metrics
type Recorder interface {
	ObserveCollection(kind string, items int, elapsed time.Duration)
	ProviderFault(kind, operation string)
	ObserveDeploymentFetches(kind string, succeeded, failed int)
}

// Progress tracks deployment fetches. *progressbar.ProgressBar satisfies it.
type Progress interface {
	Add(n int) error
	Finish() error
}

// ProgressFactory creates a Progress for total deployment fetches
type ProgressFactory func(total int, description string) Progress

// Options configures a Collector
type Options struct {
	SubscriptionID string
	NewClient      ClientFactory
	Rates          rates.Lookup
	Logger         Logger
	Recorder       Recorder
	Progress       ProgressFactory
	// MaxWorkers bounds concurrent deployment fetches; 1 is strictly sequential
	MaxWorkers int
}

// Collector walks the hosted services of a subscription and builds typed sets
type Collector struct {
	subscriptionID string
	newClient      ClientFactory
	rates          rates.Lookup
	logger         Logger
	recorder       Recorder
	progress       ProgressFactory
	maxWorkers     int
}

// NewCollector creates a Collector. NewClient is required.
func NewCollector(opts Options) (*Collector, error) {
	if opts.NewClient == nil {
		return nil, fmt.Errorf("inventory client factory is required")
	}
	if opts.Rates == nil {
		opts.Rates = rates.NewTable(nil)
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	return &Collector{
		subscriptionID: opts.SubscriptionID,
		newClient:      opts.NewClient,
		rates:          opts.Rates,
		logger:         opts.Logger,
		recorder:       opts.Recorder,
		progress:       opts.Progress,
		maxWorkers:     opts.MaxWorkers,
	}, nil
}

// CollectCloudServices lists every hosted service of the subscription
func (c *Collector) CollectCloudServices(ctx context.Context) Result[CloudServiceSet] {
	start := time.Now()
	c.logger.CollectionStart(KindCloudService, c.subscriptionID)

	_, services, fault := c.listServices(ctx, KindCloudService)
	if fault != nil {
		return failed(c, KindCloudService, start, Result[CloudServiceSet]{Set: CloudServiceSet{}, Err: fault})
	}

	set := make(CloudServiceSet, 0, len(services))
	for _, svc := range services {
		set = append(set, CloudService{
			ServiceName: svc.ServiceName,
			URI:         svc.URL,
		})
	}

	c.complete(KindCloudService, start, len(set), 0)
	return Result[CloudServiceSet]{Set: set}
}

// CollectVirtualMachines builds one entry per persistent VM role of every
// production deployment. Other role types are left out.
func (c *Collector) CollectVirtualMachines(ctx context.Context) Result[VirtualMachineSet] {
	start := time.Now()
	c.logger.CollectionStart(KindVirtualMachine, c.subscriptionID)

	client, services, fault := c.listServices(ctx, KindVirtualMachine)
	if fault != nil {
		return failed(c, KindVirtualMachine, start, Result[VirtualMachineSet]{Set: VirtualMachineSet{}, Err: fault})
	}

	deployments, faults := c.fetchDeployments(ctx, KindVirtualMachine, client, services)

	set := VirtualMachineSet{}
	for _, d := range deployments {
		if d == nil || len(d.Roles) == 0 {
			continue
		}
		for _, role := range d.Roles {
			if role.RoleType != azure.PersistentVMRole {
				continue
			}
			rate := c.rates.Rate(role.RoleSize)
			set = append(set, VirtualMachine{
				RoleName:    role.RoleName,
				RoleSize:    role.RoleSize,
				RoleType:    role.RoleType,
				OSVersion:   vmOSVersion(role),
				HourlyRate:  rate.Hourly,
				MonthlyRate: rate.Monthly,
			})
		}
	}

	result := Result[VirtualMachineSet]{Set: set, Faults: faults}
	if allFailed(services, faults) {
		result.Err = ErrAllServicesFailed
		return failed(c, KindVirtualMachine, start, result)
	}
	c.complete(KindVirtualMachine, start, len(set), len(faults))
	return result
}

// CollectComputeRoles builds one entry per role instance of every production
// deployment. The OS version comes from the last role record of the deployment.
func (c *Collector) CollectComputeRoles(ctx context.Context) Result[ComputeRoleSet] {
	start := time.Now()
	c.logger.CollectionStart(KindComputeRole, c.subscriptionID)

	client, services, fault := c.listServices(ctx, KindComputeRole)
	if fault != nil {
		return failed(c, KindComputeRole, start, Result[ComputeRoleSet]{Set: ComputeRoleSet{}, Err: fault})
	}

	deployments, faults := c.fetchDeployments(ctx, KindComputeRole, client, services)

	set := ComputeRoleSet{}
	for i, d := range deployments {
		if d == nil {
			continue
		}
		var osVersion string
		for _, role := range d.Roles {
			osVersion = role.OSVersion
		}
		for _, instance := range d.RoleInstances {
			rate := c.rates.Rate(instance.InstanceSize)
			set = append(set, ComputeRole{
				ServiceName:    services[i].ServiceName,
				InstanceName:   instance.InstanceName,
				RoleName:       instance.RoleName,
				InstanceSize:   instance.InstanceSize,
				InstanceStatus: instance.InstanceStatus,
				OSVersion:      osVersion,
				HourlyRate:     rate.Hourly,
				MonthlyRate:    rate.Monthly,
			})
		}
	}

	result := Result[ComputeRoleSet]{Set: set, Faults: faults}
	if allFailed(services, faults) {
		result.Err = ErrAllServicesFailed
		return failed(c, KindComputeRole, start, result)
	}
	c.complete(KindComputeRole, start, len(set), len(faults))
	return result
}

// ListServices returns the hosted services without building a report set
func (c *Collector) ListServices(ctx context.Context) ([]azure.HostedService, error) {
	_, services, fault := c.listServices(ctx, KindCloudService)
	if fault != nil {
		return nil, fault
	}
	return services, nil
}

func (c *Collector) listServices(ctx context.Context, kind string) (azure.InventoryClient, []azure.HostedService, *ProviderFault) {
	client, err := c.newClient(ctx)
	if err != nil {
		return nil, nil, c.fault(kind, "NewClient", "", err)
	}
	services, err := client.ListHostedServices(ctx)
	if err != nil {
		return nil, nil, c.fault(kind, "ListHostedServices", "", err)
	}
	services = c.distinctServices(kind, services)
	c.logger.Debug("Hosted services listed", map[string]interface{}{
		"kind":  kind,
		"count": len(services),
	})
	return client, services, nil
}

// distinctServices drops unnamed services and repeated names, keeping the
// first occurrence. Service names are DNS labels and compare case-insensitively.
func (c *Collector) distinctServices(kind string, services []azure.HostedService) []azure.HostedService {
	seen := make(map[string]struct{}, len(services))
	kept := make([]azure.HostedService, 0, len(services))
	for _, svc := range services {
		key := strings.ToLower(svc.ServiceName)
		if key == "" {
			c.logger.Debug("Skipping hosted service without a name", map[string]interface{}{
				"kind": kind,
				"url":  svc.URL,
			})
			continue
		}
		if _, dup := seen[key]; dup {
			c.logger.Debug("Skipping duplicate hosted service", map[string]interface{}{
				"kind":    kind,
				"service": svc.ServiceName,
			})
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, svc)
	}
	return kept
}

// fetchDeployments reads the production deployment of every service. The
// returned slice is indexed like services; a faulted or empty slot is nil.
func (c *Collector) fetchDeployments(ctx context.Context, kind string, client azure.InventoryClient, services []azure.HostedService) ([]*azure.Deployment, []*ProviderFault) {
	deployments := make([]*azure.Deployment, len(services))
	if len(services) == 0 {
		return deployments, nil
	}

	var bar Progress
	if c.progress != nil {
		bar = c.progress(len(services), fmt.Sprintf("Reading %s deployments", kind))
	}

	tasks := make([]worker.Task, len(services))
	for i, svc := range services {
		i, name := i, svc.ServiceName
		tasks[i] = func(ctx context.Context) error {
			if bar != nil {
				defer func() { _ = bar.Add(1) }()
			}
			d, err := client.GetDeployment(ctx, name, azure.SlotProduction)
			if err != nil {
				return err
			}
			deployments[i] = d
			return nil
		}
	}

	pool := worker.NewPool(c.maxWorkers)
	errs := pool.ExecuteTasks(ctx, tasks)
	pool.Stop()
	if bar != nil {
		_ = bar.Finish()
	}

	stats := pool.GetMetrics()
	c.recorder.ObserveDeploymentFetches(kind, int(stats.CompletedTasks), int(stats.FailedTasks))
	c.logger.Debug("Deployments fetched", map[string]interface{}{
		"kind":        kind,
		"tasks":       stats.TotalTasks,
		"failed":      stats.FailedTasks,
		"peakWorkers": stats.PeakWorkers,
		"avgMs":       stats.AverageExecutionMs,
	})

	var faults []*ProviderFault
	for i, err := range errs {
		if err == nil {
			continue
		}
		deployments[i] = nil
		faults = append(faults, c.fault(kind, "GetDeployment", services[i].ServiceName, err))
	}
	return deployments, faults
}

func (c *Collector) fault(kind, operation, service string, err error) *ProviderFault {
	c.logger.CollectionFault(kind, service, err)
	c.recorder.ProviderFault(kind, operation)
	return &ProviderFault{Kind: kind, Operation: operation, ServiceName: service, Err: err}
}

func (c *Collector) complete(kind string, start time.Time, count, faults int) {
	c.recorder.ObserveCollection(kind, count, time.Since(start))
	c.logger.CollectionComplete(kind, c.subscriptionID, count, faults)
}

// failed closes a collection that produced no data
func failed[S any](c *Collector, kind string, start time.Time, r Result[S]) Result[S] {
	c.recorder.ObserveCollection(kind, 0, time.Since(start))
	c.logger.CollectionComplete(kind, c.subscriptionID, 0, r.FaultCount())
	return r
}

func allFailed(services []azure.HostedService, faults []*ProviderFault) bool {
	return len(services) > 0 && len(faults) == len(services)
}

// vmOSVersion renders "{OS}--{SourceImageName}" from the role's OS disk
func vmOSVersion(role azure.Role) string {
	var osFamily, image string
	if role.OSVirtualHardDisk != nil {
		osFamily = role.OSVirtualHardDisk.OS
		image = role.OSVirtualHardDisk.SourceImageName
	}
	return osFamily + "--" + image
}

type nopLogger struct{}

func (nopLogger) CollectionStart(string, string)              {}
func (nopLogger) CollectionFault(string, string, error)       {}
func (nopLogger) CollectionComplete(string, string, int, int) {}
func (nopLogger) Debug(string, ...interface{})                {}

type nopRecorder struct{}

func (nopRecorder) ObserveCollection(string, int, time.Duration) {}
func (nopRecorder) ProviderFault(string, string)                 {}
func (nopRecorder) ObserveDeploymentFetches(string, int, int)    {}
