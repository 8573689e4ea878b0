package chanstream

import (
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"
)

// NkeySeed authenticates the underlying bus connection with an NKey seed
// instead of a seed file on disk. Used when the seed is already held in
// memory (e.g. injected via a secrets manager) rather than read from a
// path known at Connect time.
func NkeySeed(seed []byte) Option {
	return func(o *Options) error {
		kp, err := nkeys.FromSeed(seed)
		if err != nil {
			return &ConfigurationError{Field: "NkeySeed", Reason: err.Error()}
		}
		pub, err := kp.PublicKey()
		if err != nil {
			return &ConfigurationError{Field: "NkeySeed", Reason: err.Error()}
		}
		o.natsExtra = append(o.natsExtra, nats.Nkey(pub, kp.Sign))
		return nil
	}
}

// NkeySeedFile is the file-path form of NkeySeed: the seed is read once,
// at Connect time, from a file holding only the NKey seed, using nats.go's
// own seed-file option builder rather than hand-rolling file I/O.
func NkeySeedFile(path string) Option {
	return func(o *Options) error {
		opt, err := nats.NkeyOptionFromSeed(path)
		if err != nil {
			return &ConfigurationError{Field: "NkeySeedFile", Reason: err.Error()}
		}
		o.natsExtra = append(o.natsExtra, opt)
		return nil
	}
}
