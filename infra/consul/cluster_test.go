package consul

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/wlog"
)

func TestCluster_Start(t *testing.T) {
	originalNewConsul := newConsul
	originalReconnectDuration := reconnectDuration

	t.Cleanup(func() {
		newConsul = originalNewConsul
		reconnectDuration = originalReconnectDuration
	})

	reconnectDuration = 1 * time.Millisecond

	log := wlog.NewLogger(&wlog.LoggerConfiguration{EnableConsole: false})
	cluster := NewCluster("test-app", "consul:8500", nil, log)

	stub := func(agent *fakeAgent) {
		newConsul = func(id, consulAgentAddr string, l *wlog.Logger, check CheckFunction) (*Consul, error) {
			return &Consul{
				id:    id,
				agent: agent,
				log:   log,
				stop:  make(chan struct{}),
				check: check,
			}, nil
		}
	}

	t.Run("successful registration on first attempt", func(t *testing.T) {
		agent := &fakeAgent{}
		stub(agent)

		err := cluster.Start("test-id", "localhost", 80)

		require.NoError(t, err)
		assert.Len(t, agent.registered, 1)

		cluster.Stop()
		assert.Len(t, agent.deregistered, 1)
	})

	t.Run("successful registration after retries", func(t *testing.T) {
		agent := &fakeAgent{registerErr: []error{errors.New("fail"), errors.New("fail")}}
		stub(agent)

		err := cluster.Start("test-id", "localhost", 80)

		require.NoError(t, err)
		assert.Len(t, agent.registered, 1)

		cluster.Stop()
	})

	t.Run("failed registration after all attempts", func(t *testing.T) {
		scripted := make([]error, defaultReconnectAttempts)
		for i := range scripted {
			scripted[i] = errors.New("fail")
		}

		agent := &fakeAgent{registerErr: scripted}
		stub(agent)

		err := cluster.Start("test-id", "localhost", 80)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeded maximum reconnect attempts")
	})
}
