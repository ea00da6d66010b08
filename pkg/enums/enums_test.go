package enums

import (
	"errors"
	"testing"
)

func TestParseDeliveryTypeAcceptsLegacyPickUp(t *testing.T) {
	got, err := ParseDeliveryType("pick_up")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != DeliverySchoolPickup {
		t.Fatalf("expected school_pickup, got %s", got)
	}
}

func TestParseRejectsUnknownWithTypedError(t *testing.T) {
	cases := []struct {
		name  string
		parse func() error
	}{
		{"shipment", func() error { _, err := ParseShipmentStatus("lost"); return err }},
		{"delivery", func() error { _, err := ParseDeliveryType("drone"); return err }},
		{"payment", func() error { _, err := ParsePaymentMethod("card"); return err }},
		{"provider", func() error { _, err := ParsePaymentProvider("stripe"); return err }},
		{"fetch", func() error { _, err := ParseFetchLevel("huge", FetchDefault); return err }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.parse()
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
		})
	}
}

func TestShipmentStatusRoundTripsThroughSQL(t *testing.T) {
	for _, status := range validShipmentStatuses {
		value, err := status.Value()
		if err != nil {
			t.Fatalf("Value(%s): %v", status, err)
		}
		var scanned ShipmentStatus
		if err := scanned.Scan([]byte(value.(string))); err != nil {
			t.Fatalf("Scan(%s): %v", status, err)
		}
		if scanned != status {
			t.Fatalf("expected %s got %s", status, scanned)
		}
	}

	var bad ShipmentStatus
	if err := bad.Scan("shipped"); err == nil {
		t.Fatal("expected scan of unknown status to fail")
	}
	if _, err := ShipmentStatus("").Value(); err == nil {
		t.Fatal("expected empty status to be rejected on write")
	}
}

func TestShipmentStatusTerminal(t *testing.T) {
	if !ShipmentDelivered.IsTerminal() || !ShipmentCanceled.IsTerminal() {
		t.Fatal("delivered and canceled are terminal")
	}
	if ShipmentPending.IsTerminal() || ShipmentNotShippedOut.IsTerminal() {
		t.Fatal("pending and not_shipped_out are not terminal")
	}
}

func TestParseFetchLevelFallback(t *testing.T) {
	got, err := ParseFetchLevel("", FetchCompact)
	if err != nil || got != FetchCompact {
		t.Fatalf("expected fallback, got %s %v", got, err)
	}
}
