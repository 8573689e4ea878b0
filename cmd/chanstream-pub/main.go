// Command chanstream-pub publishes a single message to a channel, the
// way the ecosystem's own stan-pub/stan-sub tools do.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	chanstream "github.com/chanstream/chanstream-go"
)

func main() {
	envCluster, envClient := chanstream.ClusterAndClientFromEnv()
	if envCluster == "" {
		envCluster = "test-cluster"
	}
	if envClient == "" {
		envClient = "chanstream-pub"
	}

	var (
		clusterID = flag.String("c", envCluster, "cluster ID (default from STAN_CLUSTER_ID)")
		clientID  = flag.String("id", envClient, "client ID (default from STAN_CLIENT_ID)")
		url       = flag.String("s", "", "bus URL (default from NATS_URL, else "+chanstream.DefaultNatsURL+")")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: chanstream-pub [options] <subject> <message>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		flag.Usage()
		os.Exit(1)
	}
	subject, message := args[0], args[1]

	opts := chanstream.OptionsFromEnv()
	if *url != "" {
		opts = append(opts, chanstream.NatsURL(*url))
	}
	conn, err := chanstream.Connect(*clusterID, *clientID, opts...)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	guid, err := conn.Publish(subject, []byte(message))
	if err != nil {
		log.Fatalf("publish: %v", err)
	}
	fmt.Printf("published guid %s to %q\n", guid, subject)
}
