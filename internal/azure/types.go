package azure

import (
	"context"
	"encoding/xml"
)

// Slot is a deployment slot of a hosted service
type Slot string

// SlotProduction is the only slot the reports read
const SlotProduction Slot = "production"

// PersistentVMRole is the RoleType of durable virtual machines
const PersistentVMRole = "PersistentVMRole"

// InventoryClient lists the compute inventory of one subscription
type InventoryClient interface {
	// ListHostedServices returns every hosted service in provider order
	ListHostedServices(ctx context.Context) ([]HostedService, error)

	// GetDeployment returns the deployment in slot, or nil when the slot is empty
	GetDeployment(ctx context.Context, serviceName string, slot Slot) (*Deployment, error)
}

// HostedService is one entry of the hosted services listing
type HostedService struct {
	ServiceName string `xml:"ServiceName"`
	URL         string `xml:"Url"`
}

// HostedServiceList is the body of a hosted services listing
type HostedServiceList struct {
	XMLName  xml.Name        `xml:"HostedServices"`
	Services []HostedService `xml:"HostedService"`
}

// Deployment is a hosted service deployment with its roles and running instances
type Deployment struct {
	XMLName        xml.Name       `xml:"Deployment"`
	Name           string         `xml:"Name"`
	DeploymentSlot string         `xml:"DeploymentSlot"`
	Status         string         `xml:"Status"`
	RoleInstances  []RoleInstance `xml:"RoleInstanceList>RoleInstance"`
	Roles          []Role         `xml:"RoleList>Role"`
}

// Role is the role-level metadata of a deployment
type Role struct {
	RoleName          string             `xml:"RoleName"`
	RoleType          string             `xml:"RoleType"`
	RoleSize          string             `xml:"RoleSize"`
	OSVersion         string             `xml:"OsVersion"`
	OSVirtualHardDisk *OSVirtualHardDisk `xml:"OSVirtualHardDisk"`
}

// OSVirtualHardDisk describes the OS disk of a persistent VM role
type OSVirtualHardDisk struct {
	OS              string `xml:"OS"`
	SourceImageName string `xml:"SourceImageName"`
}

// RoleInstance is one running instance of a role
type RoleInstance struct {
	RoleName       string `xml:"RoleName"`
	InstanceName   string `xml:"InstanceName"`
	InstanceStatus string `xml:"InstanceStatus"`
	InstanceSize   string `xml:"InstanceSize"`
}

// serviceError is the error body returned by the management API
type serviceError struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}
