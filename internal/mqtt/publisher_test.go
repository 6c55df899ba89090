// internal/mqtt/publisher_test.go
package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tamzrod/provisiond/internal/status"
	"github.com/tamzrod/provisiond/internal/wifi"
)

// ---- fakes ----

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	retained bool
	payload  string
}

type fakeClient struct {
	mu       sync.Mutex
	open     bool
	connects int
	pubs     []published
}

func (c *fakeClient) Connect() paho.Token {
	c.mu.Lock()
	c.connects++
	c.mu.Unlock()
	return doneToken{}
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	c.pubs = append(c.pubs, published{topic: topic, retained: retained, payload: string(payload.([]byte))})
	c.mu.Unlock()
	return doneToken{}
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
}

func (c *fakeClient) published() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.pubs...)
}

func (c *fakeClient) connectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

// ---- tests ----

func TestPublisher_HoldsSnapshotUntilConnected(t *testing.T) {
	fc := &fakeClient{}
	p := NewWithClient(Config{TopicPrefix: "dev1"}, fc)

	p.Observe(status.Snapshot{Connect: status.ConnectSucceeded})
	if n := len(fc.published()); n != 0 {
		t.Fatalf("expected no publish while offline, got %d", n)
	}

	fc.mu.Lock()
	fc.open = true
	fc.mu.Unlock()
	p.onConnect()

	pubs := fc.published()
	if len(pubs) != 2 {
		t.Fatalf("expected availability + status, got %+v", pubs)
	}
	if pubs[0].topic != "dev1/availability" || pubs[0].payload != "online" {
		t.Fatalf("unexpected availability publish %+v", pubs[0])
	}
	want := `{"wifi_connect_status":3,"ota_update_status":0,"time_synced":false}`
	if pubs[1].topic != "dev1/status" || pubs[1].payload != want || !pubs[1].retained {
		t.Fatalf("unexpected status publish %+v", pubs[1])
	}
}

func TestPublisher_PublishesEveryChangeWhenOnline(t *testing.T) {
	fc := &fakeClient{open: true}
	p := NewWithClient(Config{TopicPrefix: "dev1"}, fc)

	p.Observe(status.Snapshot{Connect: status.ConnectConnecting})
	p.Observe(status.Snapshot{Connect: status.ConnectSucceeded, TimeSynced: true})

	pubs := fc.published()
	if len(pubs) != 2 {
		t.Fatalf("expected two publishes, got %d", len(pubs))
	}
	if pubs[1].payload != `{"wifi_connect_status":3,"ota_update_status":0,"time_synced":true}` {
		t.Fatalf("unexpected payload %s", pubs[1].payload)
	}
}

func TestPublisher_StartIsIdempotent(t *testing.T) {
	fc := &fakeClient{}
	p := NewWithClient(Config{TopicPrefix: "dev1"}, fc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx, wifi.IPInfo{IP: "192.168.1.50"})
	p.Start(ctx, wifi.IPInfo{IP: "192.168.1.50"})

	deadline := time.Now().Add(time.Second)
	for fc.connectCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if n := fc.connectCount(); n != 1 {
		t.Fatalf("expected one connect, got %d", n)
	}
}

func TestNew_RequiresBroker(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without broker")
	}
	if _, err := New(Config{Broker: "tcp://127.0.0.1:1883", ClientID: "t", TopicPrefix: "dev1"}); err != nil {
		t.Fatalf("New() err=%v", err)
	}
}
