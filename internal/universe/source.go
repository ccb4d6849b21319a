package universe

import "github.com/google/uuid"

// source is the registry record for one registered transmitter.
//
// Owned exclusively by the Universe: created on the first accepted
// packet from a new identity, destroyed on termination or timeout.
// Exactly one record and one live timer exist per registered identity.
type source struct {
	id          uuid.UUID
	priority    uint8
	lastDataSeq uint8
}
