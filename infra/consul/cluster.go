package consul

import (
	"fmt"
	"time"

	"github.com/webitel/wlog"
)

var (
	defaultReconnectAttempts = 10
	reconnectDuration        = 5 * time.Second
	serviceTTL               = 10 * time.Second
	deregisterTTL            = 2 * serviceTTL // time until deregistration after going critical
)

var newConsul = NewConsul

type Cluster struct {
	consulAddr string
	name       string
	discovery  *Consul
	check      CheckFunction
	log        *wlog.Logger
}

func NewCluster(name, consulAddr string, check CheckFunction, log *wlog.Logger) *Cluster {
	return &Cluster{
		name:       name,
		consulAddr: consulAddr,
		check:      check,
		log:        log.With(wlog.String("scope", "consul")),
	}
}

func (c *Cluster) Start(serviceInstanceID, host string, port int) error {
	check := c.check
	if check == nil {
		check = func() error { return nil }
	}

	consulClient, err := newConsul(serviceInstanceID, c.consulAddr, c.log, check)
	if err != nil {
		return err
	}

	c.discovery = consulClient

	serviceConfig := Config{
		Name:            c.name,
		Address:         host,
		Port:            port,
		TTL:             serviceTTL,
		CriticalTTL:     deregisterTTL,
		Tags:            nil,
		ConsulAgentAddr: c.consulAddr,
	}
	if err = c.attemptConsulRegistration(serviceConfig); err != nil {
		return fmt.Errorf("failed to register service in Consul after multiple attempts: %w", err)
	}

	c.log.Info(fmt.Sprintf("Service '%s' (ID: %s) successfully registered with Consul.", c.name, serviceInstanceID))

	return nil
}

func (c *Cluster) Stop() {
	c.discovery.Shutdown()
}

func (c *Cluster) attemptConsulRegistration(config Config) error {
	for i := range defaultReconnectAttempts {
		err := c.discovery.RegisterService(config)
		if err == nil {
			return nil
		}

		c.log.Error(fmt.Sprintf("Attempt %d/%d: Failed to register service '%s' with Consul. Retrying in %v. Error: %v",
			i+1, defaultReconnectAttempts, config.Name, reconnectDuration, err))

		time.Sleep(reconnectDuration)
	}

	return fmt.Errorf("exceeded maximum reconnect attempts (%d) for Consul registration", defaultReconnectAttempts)
}
