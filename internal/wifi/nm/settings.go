// internal/wifi/nm/settings.go
package nm

import (
	"fmt"
	"net"

	"github.com/godbus/dbus/v5"

	"github.com/tamzrod/provisiond/internal/wifi"
)

// settings is the NetworkManager connection dictionary a{sa{sv}}.
type settings map[string]map[string]dbus.Variant

const (
	staConnectionID = "provisiond-sta"
	apConnectionID  = "provisiond-ap"
)

// stationSettings builds an infrastructure-mode profile with DHCP.
func stationSettings(iface string, cfg wifi.Config) settings {
	s := settings{
		"connection": {
			"id":             dbus.MakeVariant(staConnectionID),
			"type":           dbus.MakeVariant("802-11-wireless"),
			"interface-name": dbus.MakeVariant(iface),
			"autoconnect":    dbus.MakeVariant(false),
		},
		"802-11-wireless": {
			"ssid": dbus.MakeVariant([]byte(cfg.SSIDString())),
			"mode": dbus.MakeVariant("infrastructure"),
		},
		"ipv4": {"method": dbus.MakeVariant("auto")},
		"ipv6": {"method": dbus.MakeVariant("ignore")},
	}

	if pwd := cfg.PasswordString(); pwd != "" {
		s["802-11-wireless-security"] = map[string]dbus.Variant{
			"key-mgmt": dbus.MakeVariant("wpa-psk"),
			"psk":      dbus.MakeVariant(pwd),
		}
	}
	return s
}

// accessPointSettings builds an AP-mode profile sharing a static address.
func accessPointSettings(ap wifi.APConfig) (settings, error) {
	prefix, err := prefixLen(ap.Netmask)
	if err != nil {
		return nil, err
	}

	wireless := map[string]dbus.Variant{
		"ssid":   dbus.MakeVariant([]byte(ap.SSID)),
		"mode":   dbus.MakeVariant("ap"),
		"band":   dbus.MakeVariant("bg"),
		"hidden": dbus.MakeVariant(ap.Hidden),
	}
	if ap.Channel > 0 {
		wireless["channel"] = dbus.MakeVariant(uint32(ap.Channel))
	}

	s := settings{
		"connection": {
			"id":             dbus.MakeVariant(apConnectionID),
			"type":           dbus.MakeVariant("802-11-wireless"),
			"interface-name": dbus.MakeVariant(ap.Interface),
			"autoconnect":    dbus.MakeVariant(false),
		},
		"802-11-wireless": wireless,
		"ipv4": {
			"method": dbus.MakeVariant("shared"),
			"address-data": dbus.MakeVariant([]map[string]dbus.Variant{{
				"address": dbus.MakeVariant(ap.Address),
				"prefix":  dbus.MakeVariant(uint32(prefix)),
			}}),
		},
		"ipv6": {"method": dbus.MakeVariant("ignore")},
	}

	if ap.Password != "" {
		s["802-11-wireless-security"] = map[string]dbus.Variant{
			"key-mgmt": dbus.MakeVariant("wpa-psk"),
			"psk":      dbus.MakeVariant(ap.Password),
		}
	}
	return s, nil
}

func prefixLen(mask string) (int, error) {
	ip := net.ParseIP(mask).To4()
	if ip == nil {
		return 0, fmt.Errorf("nm: invalid netmask %q", mask)
	}
	ones, bits := net.IPMask(ip).Size()
	if bits == 0 {
		return 0, fmt.Errorf("nm: non-contiguous netmask %q", mask)
	}
	return ones, nil
}

func netmask(prefix uint32) string {
	m := net.CIDRMask(int(prefix), 32)
	return net.IP(m).String()
}

// firstAddress extracts address and prefix from IP4Config.AddressData.
func firstAddress(data []map[string]dbus.Variant) (string, uint32, bool) {
	if len(data) == 0 {
		return "", 0, false
	}
	addr, ok := data[0]["address"].Value().(string)
	if !ok {
		return "", 0, false
	}
	prefix, _ := data[0]["prefix"].Value().(uint32)
	return addr, prefix, true
}
