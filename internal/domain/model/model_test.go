package model

import "testing"

func TestOrderStatusValues(t *testing.T) {
	cases := []struct {
		name     string
		got      OrderStatus
		value    string
		terminal bool
	}{
		{"pending", OrderStatusPending, "PENDING", false},
		{"paid", OrderStatusPaid, "PAID", true},
		{"cancelled", OrderStatusCancelled, "CANCELLED", true},
		{"payment failed", OrderStatusPaymentFailed, "PAYMENT_FAILED", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if string(tc.got) != tc.value {
				t.Fatalf("expected %s, got %s", tc.value, tc.got)
			}
			if tc.got.Terminal() != tc.terminal {
				t.Fatalf("expected terminal=%v for %s", tc.terminal, tc.got)
			}
			if !tc.got.Valid() {
				t.Fatalf("expected %s to be valid", tc.got)
			}
		})
	}

	if OrderStatus("CONFIRMED").Valid() {
		t.Fatal("did not expect unknown status to be valid")
	}
}

func TestProviderValues(t *testing.T) {
	if !ProviderStripe.Valid() || !ProviderPayPal.Valid() {
		t.Fatal("expected known providers to be valid")
	}
	if Provider("ADYEN").Valid() {
		t.Fatal("did not expect unknown provider to be valid")
	}
}

func TestEventKindValues(t *testing.T) {
	cases := []struct {
		kind  EventKind
		value string
	}{
		{EventCompleted, "COMPLETED"},
		{EventExpired, "EXPIRED"},
		{EventFailed, "FAILED"},
	}

	for _, tc := range cases {
		if string(tc.kind) != tc.value {
			t.Fatalf("expected %s, got %s", tc.value, tc.kind)
		}
	}
}
