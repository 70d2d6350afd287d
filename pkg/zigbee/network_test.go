package zigbee

import (
	"os"
	"testing"
	"time"

	"github.com/nestwatch/conbee-gateway/pkg/deconz"
)

func newTestManager(t *testing.T) *NetworkManager {
	t.Helper()
	dir := t.TempDir()
	return &NetworkManager{
		dataDir: dir,
		devices: make(map[uint64]*ZigbeeDevice),
		byNwk:   make(map[uint16]uint64),
		bus:     deconz.NewEventBus[NetworkEvent](),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func TestDeviceAnnouncedInsertsAndPersists(t *testing.T) {
	nm := newTestManager(t)
	sub := nm.Subscribe()

	nm.handleDeviceAnnounced(deconz.EventDeviceAnnounced{
		Announcement: deconz.DeviceAnnouncement{
			NwkAddress:  0x1234,
			IeeeAddress: 0xAABBCCDDEEFF0011,
			Capability:  0x02,
		},
	})

	select {
	case evt := <-sub:
		joined, ok := evt.(EventDeviceJoined)
		if !ok {
			t.Fatalf("expected EventDeviceJoined, got %T", evt)
		}
		if joined.Device.NwkAddress != 0x1234 {
			t.Fatalf("unexpected nwk: %x", joined.Device.NwkAddress)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for join event")
	}

	d, ok := nm.GetDevice(0xAABBCCDDEEFF0011)
	if !ok {
		t.Fatal("expected device present in inventory")
	}
	if d.DeviceType != DeviceTypeRouter {
		t.Fatalf("expected router type from capability bit, got %s", d.DeviceType)
	}

	if _, err := os.Stat(nm.devicesPath()); err != nil {
		t.Fatalf("expected persisted snapshot: %v", err)
	}
}

func TestReannounceEmitsUpdatedNotJoined(t *testing.T) {
	nm := newTestManager(t)
	nm.handleDeviceAnnounced(deconz.EventDeviceAnnounced{
		Announcement: deconz.DeviceAnnouncement{NwkAddress: 1, IeeeAddress: 42},
	})

	sub := nm.Subscribe()
	nm.handleDeviceAnnounced(deconz.EventDeviceAnnounced{
		Announcement: deconz.DeviceAnnouncement{NwkAddress: 2, IeeeAddress: 42},
	})

	select {
	case evt := <-sub:
		if _, ok := evt.(EventDeviceUpdated); !ok {
			t.Fatalf("expected EventDeviceUpdated on re-announce, got %T", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	d, _ := nm.GetDevice(42)
	if d.NwkAddress != 2 {
		t.Fatalf("expected nwk address updated to 2, got %d", d.NwkAddress)
	}
}

func TestOnOffIndicationUpdatesState(t *testing.T) {
	nm := newTestManager(t)
	nm.handleDeviceAnnounced(deconz.EventDeviceAnnounced{
		Announcement: deconz.DeviceAnnouncement{NwkAddress: 0x55, IeeeAddress: 7},
	})

	sub := nm.Subscribe()

	ind := deconz.ApsDataIndication{
		Source:    deconz.ApsAddress{Mode: deconz.AddrModeNwk, Nwk: 0x55, Endpoint: 1},
		ProfileID: deconz.ProfileHomeAutomation,
		ClusterID: deconz.ClusterOnOff,
		Asdu:      deconz.BuildOnOffCommand(deconz.OnOffCmdOn),
	}
	nm.handleOnOffIndication(ind)

	select {
	case evt := <-sub:
		sc, ok := evt.(EventDeviceStateChanged)
		if !ok {
			t.Fatalf("expected EventDeviceStateChanged, got %T", evt)
		}
		if !sc.StateOn {
			t.Fatal("expected state_on true")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	d, _ := nm.GetDevice(7)
	if d.StateOn == nil || !*d.StateOn {
		t.Fatal("expected cached state_on true")
	}
}

func TestRemoveDeviceUnknownReturnsError(t *testing.T) {
	nm := newTestManager(t)
	if err := nm.RemoveDevice(999); err == nil {
		t.Fatal("expected error removing unknown device")
	}
}
