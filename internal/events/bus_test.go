package events

import (
	"testing"

	"github.com/hollowsignal/haunted-console/server/internal/platform/logger"
)

func TestPublishPriorityOrder(t *testing.T) {
	bus := NewBus(logger.NewLogger())
	var order []int

	bus.Subscribe(HauntingStageChanged, func(Event) { order = append(order, 5) }, 5)
	bus.Subscribe(HauntingStageChanged, func(Event) { order = append(order, 1) }, 1)
	bus.Subscribe(HauntingStageChanged, func(Event) { order = append(order, 10) }, 10)

	bus.Publish(HauntingStageChanged, nil)

	want := []int{10, 5, 1}
	if len(order) != len(want) {
		t.Fatalf("Expected %d deliveries, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Expected delivery order %v, got %v", want, order)
			break
		}
	}
}

func TestEqualPrioritySubscriptionOrder(t *testing.T) {
	bus := NewBus(logger.NewLogger())
	var order []string

	bus.Subscribe(RenderFlicker, func(Event) { order = append(order, "first") }, 0)
	bus.Subscribe(RenderFlicker, func(Event) { order = append(order, "second") }, 0)

	bus.Publish(RenderFlicker, nil)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("Expected registration order at equal priority, got %v", order)
	}
}

func TestPanickingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := NewBus(logger.NewLogger())
	delivered := false

	bus.Subscribe(HauntingJumpscare, func(Event) { panic("the renderer died") }, 10)
	bus.Subscribe(HauntingJumpscare, func(Event) { delivered = true }, 0)

	bus.Publish(HauntingJumpscare, nil)

	if !delivered {
		t.Errorf("Expected lower-priority handler to run after a panic")
	}
}

func TestSubscribeOnce(t *testing.T) {
	bus := NewBus(logger.NewLogger())
	calls := 0

	bus.SubscribeOnce(SystemPowerOn, func(Event) { calls++ }, 0)

	bus.Publish(SystemPowerOn, nil)
	bus.Publish(SystemPowerOn, nil)

	if calls != 1 {
		t.Errorf("Expected once-handler to fire exactly once, got %d", calls)
	}
}

func TestSubscribeOnceReentrantPublish(t *testing.T) {
	bus := NewBus(logger.NewLogger())
	calls := 0

	// The handler re-publishes the event it is subscribed to. Because
	// once-subscriptions come off the list before invocation, this must
	// not recurse.
	bus.SubscribeOnce(SystemReset, func(Event) {
		calls++
		bus.Publish(SystemReset, nil)
	}, 0)

	bus.Publish(SystemReset, nil)

	if calls != 1 {
		t.Errorf("Expected re-entrant once-handler to fire exactly once, got %d", calls)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(logger.NewLogger())
	calls := 0

	unsub := bus.Subscribe(InputButtonDown, func(Event) { calls++ }, 0)
	bus.Publish(InputButtonDown, nil)
	unsub()
	bus.Publish(InputButtonDown, nil)

	if calls != 1 {
		t.Errorf("Expected no delivery after unsubscribe, got %d calls", calls)
	}
}

func TestPublishWithoutSubscribersIsNoOp(t *testing.T) {
	bus := NewBus(logger.NewLogger())

	// Must not panic or block.
	bus.Publish(GameOver, nil)

	if got := len(bus.History(GameOver)); got != 1 {
		t.Errorf("Expected the orphan event in history, got %d entries", got)
	}
}

func TestHistoryRingEviction(t *testing.T) {
	bus := NewBus(logger.NewLogger())

	for i := 0; i < HistorySize+25; i++ {
		bus.Publish(RenderFlicker, i)
	}

	hist := bus.History()
	if len(hist) != HistorySize {
		t.Fatalf("Expected history capped at %d, got %d", HistorySize, len(hist))
	}
	if hist[0].Payload.(int) != 25 {
		t.Errorf("Expected oldest events evicted, first payload is %v", hist[0].Payload)
	}
	if hist[len(hist)-1].Payload.(int) != HistorySize+24 {
		t.Errorf("Expected newest event retained, last payload is %v", hist[len(hist)-1].Payload)
	}
}

func TestHistoryFilterByName(t *testing.T) {
	bus := NewBus(logger.NewLogger())

	bus.Publish(RenderFlicker, nil)
	bus.Publish(RenderStatic, nil)
	bus.Publish(RenderFlicker, nil)

	if got := len(bus.History(RenderFlicker)); got != 2 {
		t.Errorf("Expected 2 flicker events in history, got %d", got)
	}
}

func TestUnsubscribeAll(t *testing.T) {
	bus := NewBus(logger.NewLogger())
	calls := 0

	bus.Subscribe(AudioSfxPlay, func(Event) { calls++ }, 0)
	bus.Subscribe(AudioCorruption, func(Event) { calls++ }, 0)

	bus.UnsubscribeAll(AudioSfxPlay)
	bus.Publish(AudioSfxPlay, nil)
	bus.Publish(AudioCorruption, nil)

	if calls != 1 {
		t.Errorf("Expected only the surviving subscription to fire, got %d", calls)
	}
}
