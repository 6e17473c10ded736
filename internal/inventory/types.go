package inventory

import (
	"github.com/samber/lo"
)

// Resource kinds, as used in log events and metric labels
const (
	KindCloudService   = "CloudService"
	KindVirtualMachine = "VirtualMachine"
	KindComputeRole    = "ComputeRole"
)

// CloudService is one hosted service of the subscription
type CloudService struct {
	ServiceName string `json:"serviceName"`
	URI         string `json:"uri"`
}

// VirtualMachine is one persistent VM role of a production deployment
type VirtualMachine struct {
	RoleName    string `json:"roleName"`
	RoleSize    string `json:"roleSize"`
	RoleType    string `json:"roleType"`
	OSVersion   string `json:"osVersion"`
	HourlyRate  string `json:"hourlyRate"`
	MonthlyRate string `json:"monthlyRate"`
}

// ComputeRole is one running web or worker role instance of a production deployment
type ComputeRole struct {
	ServiceName    string `json:"serviceName"`
	InstanceName   string `json:"instanceName"`
	RoleName       string `json:"roleName"`
	InstanceSize   string `json:"instanceSize"`
	InstanceStatus string `json:"instanceStatus"`
	OSVersion      string `json:"osVersion"`
	HourlyRate     string `json:"hourlyRate"`
	MonthlyRate    string `json:"monthlyRate"`
}

// CloudServiceSet holds cloud services in provider enumeration order
type CloudServiceSet []CloudService

// Contains reports whether a service with the given name is in the set
func (s CloudServiceSet) Contains(serviceName string) bool {
	return lo.ContainsBy(s, func(cs CloudService) bool {
		return cs.ServiceName == serviceName
	})
}

// Names returns the service names in set order
func (s CloudServiceSet) Names() []string {
	return lo.Map(s, func(cs CloudService, _ int) string {
		return cs.ServiceName
	})
}

// VirtualMachineSet holds persistent VM roles in provider enumeration order
type VirtualMachineSet []VirtualMachine

// Contains reports whether a VM role with the given name is in the set
func (s VirtualMachineSet) Contains(roleName string) bool {
	return lo.ContainsBy(s, func(vm VirtualMachine) bool {
		return vm.RoleName == roleName
	})
}

// ComputeRoleSet holds role instances in provider enumeration order
type ComputeRoleSet []ComputeRole

// Contains reports whether the instance of the given service is in the set
func (s ComputeRoleSet) Contains(serviceName, instanceName string) bool {
	return lo.ContainsBy(s, func(cr ComputeRole) bool {
		return cr.ServiceName == serviceName && cr.InstanceName == instanceName
	})
}
