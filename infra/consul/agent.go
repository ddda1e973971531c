package consul

import "github.com/hashicorp/consul/api"

type Agent interface {
	ServiceRegister(service *api.AgentServiceRegistration) error
	ServiceDeregister(serviceID string) error
	PassTTL(checkID, note string) error
	FailTTL(checkID, note string) error
}
