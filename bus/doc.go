// Package bus provides the in-process publish/subscribe channel that units,
// trackers and callers use to exchange messages.
//
// # Delivery Model
//
// Publish is a fire-and-forget sink. The message is appended to the mailbox
// of every subscription registered at publish time whose Filter accepts it;
// a subscription created later never sees it. There is no acknowledgement
// and no backpressure: mailboxes are unbounded, so Publish never blocks on
// a slow consumer.
//
// Each Subscription owns one worker goroutine that drains its mailbox and
// invokes the handler sequentially. Publication is serialized, so every
// subscriber observes messages in the same order they were published.
//
//	b := bus.New(config.DefaultBusConfig())
//
//	sub, err := b.Subscribe(
//	    bus.All(bus.OfKind(messaging.KindCommand), bus.ForTarget("web")),
//	    func(msg *messaging.Message) {
//	        cmd, _ := msg.Command()
//	        log.Printf("web received %s", cmd)
//	    },
//	)
//	defer sub.Unsubscribe()
//
//	err = b.Publish(messaging.NewCommand("web", messaging.CommandStart).Build())
//
// # Filters
//
// OfKind selects payload kinds, ForTarget selects messages for one unit id
// (broadcasts match every target), and All/Any combine filters.
//
// # Lifecycle
//
// Unsubscribe runs exactly once and discards queued messages. Close
// unsubscribes everything; subsequent Publish and Subscribe calls return
// ErrClosed.
package bus
