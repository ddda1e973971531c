package consul

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/wlog"
)

// fakeAgent records agent calls; errors are scripted per method.
type fakeAgent struct {
	mu sync.Mutex

	registered   []*api.AgentServiceRegistration
	deregistered []string
	passed       int
	failed       int

	registerErr []error
	passErr     error
	failErr     error
}

func (a *fakeAgent) ServiceRegister(s *api.AgentServiceRegistration) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.registerErr) > 0 {
		err := a.registerErr[0]
		a.registerErr = a.registerErr[1:]

		if err != nil {
			return err
		}
	}

	a.registered = append(a.registered, s)

	return nil
}

func (a *fakeAgent) ServiceDeregister(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deregistered = append(a.deregistered, id)

	return nil
}

func (a *fakeAgent) PassTTL(checkID, note string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.passed++

	return a.passErr
}

func (a *fakeAgent) FailTTL(checkID, note string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failed++

	return a.failErr
}

func (a *fakeAgent) passCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.passed
}

func (a *fakeAgent) failCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.failed
}

func newTestConsul(agent Agent, checkFn CheckFunction) *Consul {
	if checkFn == nil {
		checkFn = func() error { return nil }
	}

	return &Consul{
		id:      "test-instance-id",
		log:     wlog.NewLogger(&wlog.LoggerConfiguration{EnableConsole: false}),
		agent:   agent,
		stop:    make(chan struct{}),
		check:   checkFn,
		checkID: "service:test-instance-id",
	}
}

func TestConsul_RegisterService(t *testing.T) {
	config := Config{
		Name:        "test-service",
		Address:     "localhost",
		Port:        8080,
		TTL:         10 * time.Second,
		CriticalTTL: 20 * time.Second,
	}

	t.Run("successful registration", func(t *testing.T) {
		agent := &fakeAgent{}
		c := newTestConsul(agent, nil)
		expectedServiceID := fmt.Sprintf("%s-%s", config.Name, c.id)

		err := c.RegisterService(config)

		require.NoError(t, err)
		assert.Equal(t, expectedServiceID, c.serviceInstanceID)
		assert.True(t, c.IsReady())
		assert.GreaterOrEqual(t, agent.passCount(), 1)

		c.Shutdown()
		assert.Equal(t, []string{expectedServiceID}, agent.deregistered)
	})

	t.Run("failed registration", func(t *testing.T) {
		agent := &fakeAgent{registerErr: []error{errors.New("consul down")}}
		c := newTestConsul(agent, nil)

		err := c.RegisterService(config)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "consul down")
	})
}

func TestConsul_TTLUpdater(t *testing.T) {
	config := Config{Name: "test-service", TTL: 20 * time.Millisecond}

	t.Run("healthy check calls PassTTL", func(t *testing.T) {
		agent := &fakeAgent{}
		c := newTestConsul(agent, func() error { return nil })

		require.NoError(t, c.RegisterService(config))

		assert.Eventually(t, func() bool {
			return agent.passCount() >= 2
		}, time.Second, 5*time.Millisecond)

		c.Shutdown()
	})

	t.Run("unhealthy check calls FailTTL", func(t *testing.T) {
		agent := &fakeAgent{}
		c := newTestConsul(agent, func() error { return errors.New("service unhealthy") })

		require.NoError(t, c.RegisterService(config))

		assert.Eventually(t, func() bool {
			return agent.failCount() >= 1
		}, time.Second, 5*time.Millisecond)

		assert.False(t, c.IsReady())

		c.Shutdown()
	})
}

func TestConsul_handleTTLUpdateError(t *testing.T) {
	t.Run("re-registers on 500 error", func(t *testing.T) {
		agent := &fakeAgent{}
		c := newTestConsul(agent, nil)
		config := Config{Name: "test-service", TTL: time.Second}
		c.config = &config
		c.serviceInstanceID = "test-service-test-instance-id"

		serverErr := api.StatusError{Code: http.StatusInternalServerError, Body: "server error"}

		c.handleTTLUpdateError(serverErr)

		assert.Len(t, agent.registered, 1)

		c.Shutdown()
	})

	t.Run("does not re-register on other errors", func(t *testing.T) {
		agent := &fakeAgent{}
		c := newTestConsul(agent, nil)

		c.handleTTLUpdateError(errors.New("some other error"))

		assert.Empty(t, agent.registered)
	})
}
