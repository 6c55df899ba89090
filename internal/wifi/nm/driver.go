// internal/wifi/nm/driver.go
package nm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/tamzrod/provisiond/internal/wifi"
)

const (
	busName       = "org.freedesktop.NetworkManager"
	rootPath      = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	ifaceNM       = "org.freedesktop.NetworkManager"
	ifaceDevice   = "org.freedesktop.NetworkManager.Device"
	ifaceActive   = "org.freedesktop.NetworkManager.Connection.Active"
	ifaceIP4      = "org.freedesktop.NetworkManager.IP4Config"
	ifaceSettings = "org.freedesktop.NetworkManager.Settings.Connection"
)

// NMActiveConnectionState values used here.
const (
	activeActivated   uint32 = 2
	activeDeactivated uint32 = 4
)

// Config names the station interface. The access point runs on its own
// device, named in wifi.APConfig.
type Config struct {
	StationInterface string
}

// Driver talks to NetworkManager on the system bus.
// StateChanged signals of the active connection created by the current
// Connect are the event source; every other activation is ignored.
type Driver struct {
	cfg  Config
	conn *dbus.Conn

	staDevice dbus.ObjectPath
	signals   chan *dbus.Signal
	lookupIP  func(ctx context.Context) (wifi.IPInfo, error)

	mu      sync.Mutex
	handler wifi.EventHandler
	cur     attempt
	apConn  dbus.ObjectPath
}

// attempt is one station activation and what was already reported for it.
type attempt struct {
	conn   dbus.ObjectPath // settings profile
	active dbus.ObjectPath // Connection.Active object
	ssid   string

	gotIP bool
	ended bool
}

// classify maps a state change of an active connection to at most one
// station event. Only the tracked activation counts: activated reports
// got-IP once, deactivated reports a disconnect once.
func (a *attempt) classify(path dbus.ObjectPath, state uint32) (wifi.EventKind, bool) {
	if a.active == "" || path != a.active || a.ended {
		return 0, false
	}
	switch state {
	case activeActivated:
		if a.gotIP {
			return 0, false
		}
		a.gotIP = true
		return wifi.EventStaGotIP, true
	case activeDeactivated:
		a.ended = true
		return wifi.EventStaDisconnected, true
	}
	return 0, false
}

var _ wifi.Driver = (*Driver)(nil)

// New connects to the system bus and subscribes to station state changes.
func New(cfg Config) (*Driver, error) {
	if cfg.StationInterface == "" {
		return nil, errors.New("nm: station interface required")
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("nm: system bus: %w", err)
	}

	d := &Driver{cfg: cfg, conn: conn}
	d.lookupIP = d.ipInfo

	d.staDevice, err = d.deviceByIface(context.Background(), cfg.StationInterface)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(ifaceActive),
		dbus.WithMatchMember("StateChanged"),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("nm: subscribe: %w", err)
	}

	d.signals = make(chan *dbus.Signal, 16)
	conn.Signal(d.signals)
	go d.watch()

	return d, nil
}

func (d *Driver) Close() error {
	d.conn.RemoveSignal(d.signals)
	return d.conn.Close()
}

func (d *Driver) SetEventHandler(h wifi.EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

func (d *Driver) StartAP(ctx context.Context, ap wifi.APConfig) error {
	s, err := accessPointSettings(ap)
	if err != nil {
		return err
	}
	dev, err := d.deviceByIface(ctx, ap.Interface)
	if err != nil {
		return err
	}

	path, _, err := d.addAndActivate(ctx, s, dev)
	if err != nil {
		return fmt.Errorf("nm: activate access point: %w", err)
	}

	d.mu.Lock()
	d.apConn = path
	h := d.handler
	d.mu.Unlock()

	if h != nil {
		go h(wifi.Event{Kind: wifi.EventAPStarted})
	}
	return nil
}

func (d *Driver) Connect(ctx context.Context, cfg wifi.Config) error {
	// Untrack first: tearing down the previous profile must not be
	// reported against the new attempt.
	prev := d.untrack()

	// One station profile at a time.
	if prev != "" {
		_ = d.deleteConnection(ctx, prev)
	}

	// Held across the call so watch cannot classify a signal of the new
	// activation before it is tracked.
	d.mu.Lock()
	defer d.mu.Unlock()

	conn, active, err := d.addAndActivate(ctx, stationSettings(d.cfg.StationInterface, cfg), d.staDevice)
	if err != nil {
		return fmt.Errorf("nm: activate station: %w", err)
	}
	d.cur = attempt{conn: conn, active: active, ssid: cfg.SSIDString()}
	return nil
}

// Disconnect tears the station down without reporting an event.
func (d *Driver) Disconnect(ctx context.Context) error {
	prev := d.untrack()

	dev := d.conn.Object(busName, d.staDevice)
	if err := dev.CallWithContext(ctx, ifaceDevice+".Disconnect", 0).Err; err != nil {
		return fmt.Errorf("nm: disconnect: %w", err)
	}
	if prev != "" {
		return d.deleteConnection(ctx, prev)
	}
	return nil
}

func (d *Driver) untrack() dbus.ObjectPath {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.cur.conn
	d.cur = attempt{}
	return prev
}

// --------------------
// Signal translation
// --------------------

func (d *Driver) watch() {
	for sig := range d.signals {
		d.dispatch(sig)
	}
}

// dispatch translates one bus signal. The handler runs without d.mu held.
func (d *Driver) dispatch(sig *dbus.Signal) {
	if sig.Name != ifaceActive+".StateChanged" || len(sig.Body) < 2 {
		return
	}
	state, _ := sig.Body[0].(uint32)
	reason, _ := sig.Body[1].(uint32)

	d.mu.Lock()
	kind, ok := d.cur.classify(sig.Path, state)
	h, ssid := d.handler, d.cur.ssid
	d.mu.Unlock()

	if !ok || h == nil {
		return
	}

	switch kind {
	case wifi.EventStaGotIP:
		info, err := d.lookupIP(context.Background())
		if err != nil {
			// reported as the attempt's one failure
			d.end(sig.Path)
			h(wifi.Event{Kind: wifi.EventStaDisconnected, Reason: err.Error()})
			return
		}
		info.SSID = ssid
		h(wifi.Event{Kind: wifi.EventStaGotIP, Info: info})

	case wifi.EventStaDisconnected:
		h(wifi.Event{Kind: wifi.EventStaDisconnected, Reason: fmt.Sprintf("nm reason %d", reason)})
	}
}

func (d *Driver) end(active dbus.ObjectPath) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cur.active == active {
		d.cur.ended = true
	}
}

func (d *Driver) ipInfo(ctx context.Context) (wifi.IPInfo, error) {
	var info wifi.IPInfo

	v, err := d.conn.Object(busName, d.staDevice).GetProperty(ifaceDevice + ".Ip4Config")
	if err != nil {
		return info, fmt.Errorf("nm: ip4 config: %w", err)
	}
	cfgPath, ok := v.Value().(dbus.ObjectPath)
	if !ok || cfgPath == "/" {
		return info, errors.New("nm: no ip4 config")
	}

	ip4 := d.conn.Object(busName, cfgPath)

	data, err := ip4.GetProperty(ifaceIP4 + ".AddressData")
	if err != nil {
		return info, fmt.Errorf("nm: address data: %w", err)
	}
	entries, _ := data.Value().([]map[string]dbus.Variant)
	addr, prefix, ok := firstAddress(entries)
	if !ok {
		return info, errors.New("nm: no ipv4 address")
	}
	info.IP = addr
	info.Netmask = netmask(prefix)

	if gw, err := ip4.GetProperty(ifaceIP4 + ".Gateway"); err == nil {
		info.Gateway, _ = gw.Value().(string)
	}
	return info, nil
}

// --------------------
// Bus helpers
// --------------------

func (d *Driver) deviceByIface(ctx context.Context, iface string) (dbus.ObjectPath, error) {
	var path dbus.ObjectPath
	err := d.conn.Object(busName, rootPath).
		CallWithContext(ctx, ifaceNM+".GetDeviceByIpIface", 0, iface).
		Store(&path)
	if err != nil {
		return "", fmt.Errorf("nm: device %s: %w", iface, err)
	}
	return path, nil
}

func (d *Driver) addAndActivate(ctx context.Context, s settings, dev dbus.ObjectPath) (conn, active dbus.ObjectPath, err error) {
	err = d.conn.Object(busName, rootPath).
		CallWithContext(ctx, ifaceNM+".AddAndActivateConnection", 0, s, dev, dbus.ObjectPath("/")).
		Store(&conn, &active)
	return conn, active, err
}

func (d *Driver) deleteConnection(ctx context.Context, path dbus.ObjectPath) error {
	return d.conn.Object(busName, path).CallWithContext(ctx, ifaceSettings+".Delete", 0).Err
}
