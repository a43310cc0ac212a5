package postgres

import (
	"time"

	pq "github.com/lib/pq"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/storage"
)

// changeListener relays NOTIFY payloads (the changed collection name) to the hub.
type changeListener struct {
	l    *pq.Listener
	hub  *storage.Hub
	done chan struct{}
}

func newChangeListener(connStr string, hub *storage.Hub) (*changeListener, error) {
	l := pq.NewListener(connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("postgres listener event", "event", ev, "error", err)
		}
	})
	if err := l.Listen(constants.PostgresNotifyTopic); err != nil {
		l.Close()
		return nil, err
	}
	c := &changeListener{l: l, hub: hub, done: make(chan struct{})}
	go c.run()
	return c, nil
}

func (c *changeListener) run() {
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-c.done:
			return
		case n, ok := <-c.l.Notify:
			if !ok {
				return
			}
			// A nil notification follows a reconnect; anything may have changed.
			if n == nil {
				c.hub.PublishAll()
				continue
			}
			c.hub.Publish(n.Extra)
		case <-ping.C:
			go c.l.Ping()
		}
	}
}

func (c *changeListener) Close() {
	close(c.done)
	c.l.Close()
}
