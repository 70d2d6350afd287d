package zigbee

import "testing"

func TestDisplayNameFallbackChain(t *testing.T) {
	d := NewZigbeeDevice(0x0011223344556677, 1)
	if d.DisplayName() != d.IeeeAddressString() {
		t.Fatalf("expected IEEE fallback, got %s", d.DisplayName())
	}

	model := "Hue White"
	d.Model = &model
	if d.DisplayName() != model {
		t.Fatalf("expected model fallback, got %s", d.DisplayName())
	}

	friendly := "Living Room Lamp"
	d.FriendlyName = &friendly
	if d.DisplayName() != friendly {
		t.Fatalf("expected friendly name, got %s", d.DisplayName())
	}
}

func TestUpsertEndpointReplacesById(t *testing.T) {
	d := NewZigbeeDevice(1, 1)
	d.UpsertEndpoint(Endpoint{ID: 1, ProfileID: 0x0104})
	d.UpsertEndpoint(Endpoint{ID: 1, ProfileID: 0x0104, InClusters: []uint16{0x0006}})

	if len(d.Endpoints) != 1 {
		t.Fatalf("expected single endpoint after replace, got %d", len(d.Endpoints))
	}
	ep, ok := d.Endpoint(1)
	if !ok || !ep.IsLight() {
		t.Fatalf("expected endpoint 1 to report as a light: %+v", ep)
	}
}

func TestInferredTypeFromClusters(t *testing.T) {
	d := NewZigbeeDevice(1, 1)
	d.UpsertEndpoint(Endpoint{ID: 1, InClusters: []uint16{0x0006}})
	if d.InferredType() != string(CategoryLight) {
		t.Fatalf("expected light, got %s", d.InferredType())
	}
}
