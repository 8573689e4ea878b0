package chanstream

import "os"

// ClusterAndClientFromEnv reads STAN_CLUSTER_ID / STAN_CLIENT_ID, the
// conventional pair of env vars CLI tools in this ecosystem use so a
// cluster/client id pair doesn't have to be wired through a full
// process-configuration framework. Either may be overridden by the caller
// after the call returns; this is a convenience, not a requirement.
func ClusterAndClientFromEnv() (clusterID, clientID string) {
	return os.Getenv("STAN_CLUSTER_ID"), os.Getenv("STAN_CLIENT_ID")
}

// OptionsFromEnv returns the Option(s) implied by NATS_URL and
// STAN_DISCOVER_PREFIX, if set. Unset variables are left at their
// defaults.
func OptionsFromEnv() []Option {
	var opts []Option
	if url := os.Getenv("NATS_URL"); url != "" {
		opts = append(opts, NatsURL(url))
	}
	if prefix := os.Getenv("STAN_DISCOVER_PREFIX"); prefix != "" {
		opts = append(opts, DiscoverPrefix(prefix))
	}
	return opts
}
