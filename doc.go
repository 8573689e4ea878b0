// Package chanstream is a client for a log-structured pub/sub streaming
// layer built on top of a connectionless core bus (NATS). It adds
// exactly-once-in-order-at-the-channel publish semantics and durable,
// acknowledged subscriptions on top of the bus's plain publish/subscribe.
//
// A Connection multiplexes publishes and deliveries for one logical
// session, identified by a clientID joined to a clusterID, over a single
// core-bus connection:
//
//	sc, err := chanstream.Connect("test-cluster", "me")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sc.Close()
//
//	sub, err := sc.Subscribe("orders", func(m *chanstream.Message) {
//		fmt.Println(string(m.Data))
//	}, chanstream.DeliverAllAvailable())
//
//	if _, err := sc.Publish("orders", []byte("hello")); err != nil {
//		log.Fatal(err)
//	}
package chanstream
