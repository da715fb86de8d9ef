package gateway_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Sosiggg/EnviroSense/internal/infra/transport/gateway"
)

func testInvalidation() gateway.Invalidation {
	return gateway.Invalidation{
		Reason: gateway.ReasonAuthorizationFailed,
		Status: http.StatusUnauthorized,
		Path:   "/api/v1/auth/me",
		At:     time.Now(),
	}
}

func TestBusFanOut(t *testing.T) {
	t.Parallel()

	bus := gateway.NewBus()

	first, cancelFirst := bus.Subscribe()
	defer cancelFirst()

	second, cancelSecond := bus.Subscribe()
	defer cancelSecond()

	bus.Publish(context.Background(), testInvalidation())

	for name, events := range map[string]<-chan gateway.Invalidation{"first": first, "second": second} {
		select {
		case inv := <-events:
			if inv.Reason != gateway.ReasonAuthorizationFailed {
				t.Errorf("%s subscriber Reason = %q, want %q", name, inv.Reason, gateway.ReasonAuthorizationFailed)
			}
		default:
			t.Errorf("%s subscriber received nothing", name)
		}
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	t.Parallel()

	bus := gateway.NewBus()

	events, cancel := bus.Subscribe()
	cancel()

	if _, open := <-events; open {
		t.Error("channel still open after cancel")
	}

	// Cancelling twice is safe
	cancel()

	// Publishing after cancel must not panic
	bus.Publish(context.Background(), testInvalidation())
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	t.Parallel()

	bus := gateway.NewBus()

	_, cancel := bus.Subscribe()
	defer cancel()

	// Never drained, so the buffer eventually fills
	for range 32 {
		bus.Publish(context.Background(), testInvalidation())
	}

	if bus.Dropped() == 0 {
		t.Error("Dropped() = 0, want > 0")
	}
}
