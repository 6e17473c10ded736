package report

import (
	"cloudtally/internal/inventory"
)

// Column is one report column: its display name and how to read it
type Column[T any] struct {
	Name  string
	Value func(T) string
}

// CloudServiceColumns is the column layout of the cloud services report
var CloudServiceColumns = []Column[inventory.CloudService]{
	{"ServiceName", func(s inventory.CloudService) string { return s.ServiceName }},
	{"Uri", func(s inventory.CloudService) string { return s.URI }},
}

// VirtualMachineColumns is the column layout of the virtual machines report
var VirtualMachineColumns = []Column[inventory.VirtualMachine]{
	{"RoleName", func(v inventory.VirtualMachine) string { return v.RoleName }},
	{"RoleSize", func(v inventory.VirtualMachine) string { return v.RoleSize }},
	{"RoleType", func(v inventory.VirtualMachine) string { return v.RoleType }},
	{"OsVersion", func(v inventory.VirtualMachine) string { return v.OSVersion }},
	{"HourlyRate", func(v inventory.VirtualMachine) string { return v.HourlyRate }},
	{"MonthlyRate", func(v inventory.VirtualMachine) string { return v.MonthlyRate }},
}

// ComputeRoleColumns is the column layout of the compute roles report
var ComputeRoleColumns = []Column[inventory.ComputeRole]{
	{"InstanceName", func(c inventory.ComputeRole) string { return c.InstanceName }},
	{"InstanceSize", func(c inventory.ComputeRole) string { return c.InstanceSize }},
	{"InstanceStatus", func(c inventory.ComputeRole) string { return c.InstanceStatus }},
	{"RoleName", func(c inventory.ComputeRole) string { return c.RoleName }},
	{"ServiceName", func(c inventory.ComputeRole) string { return c.ServiceName }},
	{"OsVersion", func(c inventory.ComputeRole) string { return c.OSVersion }},
	{"HourlyRate", func(c inventory.ComputeRole) string { return c.HourlyRate }},
	{"MonthlyRate", func(c inventory.ComputeRole) string { return c.MonthlyRate }},
}

func header[T any](cols []Column[T]) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func row[T any](cols []Column[T], item T) []string {
	values := make([]string, len(cols))
	for i, c := range cols {
		values[i] = c.Value(item)
	}
	return values
}
