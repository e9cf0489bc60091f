package store

import "codexchat/core"

// EphemeralStore keeps sessions in memory only. It also serves as the
// read-through cache inside SQLiteStore.
type EphemeralStore struct {
	m map[string][]core.Message
	u map[string]core.Usage
}

func NewEphemeralStore() EphemeralStore {
	return EphemeralStore{
		m: make(map[string][]core.Message),
		u: make(map[string]core.Usage),
	}
}

func (s EphemeralStore) Messages(sessionID string) []core.Message {
	m, ok := s.m[sessionID]
	if !ok {
		return []core.Message{}
	}
	return m
}

func (s EphemeralStore) Usage(sessionID string) core.Usage {
	u, ok := s.u[sessionID]
	if !ok {
		return core.Usage{}
	}
	return u
}

func (s *EphemeralStore) Extend(
	sessionID string,
	msgs []core.Message,
	usage core.Usage,
) error {
	m := s.Messages(sessionID)
	m = append(m, msgs...)
	s.m[sessionID] = m

	u := s.Usage(sessionID)
	u.Inc(usage)
	s.u[sessionID] = u

	return nil
}
