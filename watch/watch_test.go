package watch_test

import (
	"testing"

	"github.com/ndbkit/ndb/key"
	"github.com/ndbkit/ndb/watch"
)

func TestTableFilterMatchesEverythingWhenEmpty(t *testing.T) {
	f := watch.TableFilter{}
	if !f.Matches(watch.Event{Table: "any_table"}) {
		t.Fatalf("an empty TableFilter should match every table")
	}
}

func TestTableFilterMatchesOnlyNamedTables(t *testing.T) {
	f := watch.NewTableFilter("orders", "customers")
	if !f.Matches(watch.Event{Table: "orders"}) {
		t.Fatalf("expected orders to match")
	}
	if f.Matches(watch.Event{Table: "products"}) {
		t.Fatalf("did not expect products to match")
	}
}

func TestPrimaryKeyFilterExactAndAny(t *testing.T) {
	any := watch.NewKeyedTableFilter("orders", watch.PrimaryKeyFilter(nil))
	if !any.Matches(watch.Event{Table: "orders", PrimaryKey: []byte("k1")}) {
		t.Fatalf("Primary(None) should match any primary key")
	}

	exact := watch.NewKeyedTableFilter("orders", watch.PrimaryKeyFilter(key.Key("k1")))
	if !exact.Matches(watch.Event{Table: "orders", PrimaryKey: []byte("k1")}) {
		t.Fatalf("Primary(k1) should match an event keyed k1")
	}
	if exact.Matches(watch.Event{Table: "orders", PrimaryKey: []byte("k2")}) {
		t.Fatalf("Primary(k1) should not match an event keyed k2")
	}
}

func TestPrimaryStartWithFilter(t *testing.T) {
	f := watch.NewKeyedTableFilter("orders", watch.PrimaryStartWithFilter(key.Key("ord-")))
	if !f.Matches(watch.Event{Table: "orders", PrimaryKey: []byte("ord-1")}) {
		t.Fatalf("expected ord-1 to match prefix ord-")
	}
	if f.Matches(watch.Event{Table: "orders", PrimaryKey: []byte("cust-1")}) {
		t.Fatalf("did not expect cust-1 to match prefix ord-")
	}
}

func TestSecondaryKeyFilterRequiresPresentValue(t *testing.T) {
	f := watch.NewKeyedTableFilter("orders", watch.SecondaryKeyFilter("status", key.Key("open")))
	if !f.Matches(watch.Event{Table: "orders", SecondaryKeys: map[string][]byte{"status": []byte("open")}}) {
		t.Fatalf("expected a matching status value to match")
	}
	if f.Matches(watch.Event{Table: "orders", SecondaryKeys: map[string][]byte{"status": []byte("closed")}}) {
		t.Fatalf("did not expect a different status value to match")
	}
	if f.Matches(watch.Event{Table: "orders"}) {
		t.Fatalf("an event with no status value should not match a Secondary filter on status")
	}
}

func TestSecondaryRangeFilter(t *testing.T) {
	kr := key.Inclusive(key.Key("100"), key.Key("199"))
	f := watch.NewKeyedTableFilter("orders", watch.SecondaryRangeFilter("amount", kr))
	if !f.Matches(watch.Event{Table: "orders", SecondaryKeys: map[string][]byte{"amount": []byte("150")}}) {
		t.Fatalf("expected 150 to fall within [100, 199]")
	}
	if f.Matches(watch.Event{Table: "orders", SecondaryKeys: map[string][]byte{"amount": []byte("999")}}) {
		t.Fatalf("did not expect 999 to fall within [100, 199]")
	}
}

func TestPublishDeliversToMatchingReceiver(t *testing.T) {
	bus := watch.NewBus()
	r, err := bus.Watch(watch.NewTableFilter("orders"), 4)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer r.Unwatch()

	bus.Publish(watch.Event{Table: "orders", Op: watch.OpInsert, PrimaryKey: []byte("k1")})
	bus.Publish(watch.Event{Table: "customers", Op: watch.OpInsert, PrimaryKey: []byte("k2")})

	evt := <-r.Events()
	if evt.Table != "orders" {
		t.Fatalf("expected only the orders event delivered, got %+v", evt)
	}
	select {
	case extra := <-r.Events():
		t.Fatalf("did not expect a second event, got %+v", extra)
	default:
	}
}

func TestPublishNonBlockingMarksLagging(t *testing.T) {
	bus := watch.NewBus()
	r, err := bus.Watch(watch.TableFilter{}, 1)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer r.Unwatch()

	// Fill the one-slot buffer, then overflow it: Publish must not block.
	bus.Publish(watch.Event{Table: "t", LSN: 1})
	bus.Publish(watch.Event{Table: "t", LSN: 2})

	first := <-r.Events()
	if first.LSN != 1 {
		t.Fatalf("expected the first buffered event (LSN 1), got %+v", first)
	}
}

func TestUnwatchClosesReceiverChannel(t *testing.T) {
	bus := watch.NewBus()
	r, err := bus.Watch(watch.TableFilter{}, 1)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	r.Unwatch()

	_, ok := <-r.Events()
	if ok {
		t.Fatalf("expected the channel to be closed after Unwatch")
	}
}

func TestBusCloseClosesAllReceivers(t *testing.T) {
	bus := watch.NewBus()
	r1, _ := bus.Watch(watch.TableFilter{}, 1)
	r2, _ := bus.Watch(watch.TableFilter{}, 1)

	bus.Close()

	if _, ok := <-r1.Events(); ok {
		t.Fatalf("expected r1's channel closed after Bus.Close")
	}
	if _, ok := <-r2.Events(); ok {
		t.Fatalf("expected r2's channel closed after Bus.Close")
	}
}
