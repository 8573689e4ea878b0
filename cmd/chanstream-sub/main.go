// Command chanstream-sub subscribes to a channel and prints every
// delivered message until interrupted.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	chanstream "github.com/chanstream/chanstream-go"
)

func main() {
	envCluster, envClient := chanstream.ClusterAndClientFromEnv()
	if envCluster == "" {
		envCluster = "test-cluster"
	}
	if envClient == "" {
		envClient = "chanstream-sub"
	}

	var (
		clusterID   = flag.String("c", envCluster, "cluster ID (default from STAN_CLUSTER_ID)")
		clientID    = flag.String("id", envClient, "client ID (default from STAN_CLIENT_ID)")
		url         = flag.String("s", "", "bus URL (default from NATS_URL, else "+chanstream.DefaultNatsURL+")")
		durableName = flag.String("durable", "", "durable subscription name")
		qgroup      = flag.String("qgroup", "", "queue group name")
		allAvail    = flag.Bool("all", false, "deliver all available messages")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: chanstream-sub [options] <subject>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		flag.Usage()
		os.Exit(1)
	}
	subject := args[0]

	connOpts := chanstream.OptionsFromEnv()
	if *url != "" {
		connOpts = append(connOpts, chanstream.NatsURL(*url))
	}
	conn, err := chanstream.Connect(*clusterID, *clientID, connOpts...)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	var subOpts []chanstream.SubscriptionOption
	if *allAvail {
		subOpts = append(subOpts, chanstream.DeliverAllAvailable())
	}
	if *durableName != "" {
		subOpts = append(subOpts, chanstream.DurableName(*durableName))
	}

	handler := func(m *chanstream.Message) {
		fmt.Printf("[#%d] %s\n", m.Sequence, m.Data)
	}

	var sub *chanstream.Subscription
	if *qgroup != "" {
		sub, err = conn.QueueSubscribe(subject, *qgroup, handler, subOpts...)
	} else {
		sub, err = conn.Subscribe(subject, handler, subOpts...)
	}
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	<-sigCh
}
