package domain

import (
	"fmt"
	"slices"
	"strings"
)

// peerSet is an insertion-ordered list of peer names without duplicates.
type peerSet struct {
	peers []string
}

// add appends peer after the self-loop and duplicate checks. limit <= 0 means uncapped.
func (p *peerSet) add(owner, peer string, limit int) error {
	peer = strings.TrimSpace(peer)
	if peer == "" {
		return invalid(KindEmptyPeer, "peer", "")
	}
	if peer == owner {
		return fmt.Errorf("%w: %s", ErrSelfConnection, owner)
	}
	if slices.Contains(p.peers, peer) {
		return fmt.Errorf("%w: %s -> %s", ErrDuplicateConnection, owner, peer)
	}
	if limit > 0 && len(p.peers) >= limit {
		return fmt.Errorf("%w: %s has %d ports", ErrCapacityExceeded, owner, limit)
	}
	p.peers = append(p.peers, peer)
	return nil
}

func (p *peerSet) remove(peer string) {
	peer = strings.TrimSpace(peer)
	if i := slices.Index(p.peers, peer); i >= 0 {
		p.peers = slices.Delete(p.peers, i, i+1)
	}
}

func (p *peerSet) list() []string {
	return append([]string{}, p.peers...)
}

func (p *peerSet) set(peers []string) {
	p.peers = slices.Clone(peers)
}

func (p *peerSet) len() int { return len(p.peers) }
