// File: relay/relay.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-sfu/api"
	"github.com/momentics/hioload-sfu/internal/concurrency"
	"github.com/momentics/hioload-sfu/overload"
)

// Unlimited is the last-N value meaning every endpoint receives every packet.
const Unlimited = -1

type endpoint struct {
	id         string
	conference string
	addr       net.Addr
	lastActive atomic.Int64 // unix nanoseconds
}

type conference struct {
	id        string
	endpoints map[string]*endpoint
}

// ConferenceInfo is a membership snapshot.
type ConferenceInfo struct {
	ID        string         `json:"id"`
	Endpoints []EndpointInfo `json:"endpoints"`
}

// EndpointInfo describes one conference member.
type EndpointInfo struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// packet is shared by every send task of one datagram; the last task to
// finish hands the buffer back to the pool.
type packet struct {
	buf  []byte
	data []byte
	refs atomic.Int32
}

func (p *packet) done(bufs api.BytePool) {
	if p.refs.Add(-1) == 0 {
		bufs.Release(p.buf)
	}
}

// Relay is a selective forwarding unit over a single PacketConn.
type Relay struct {
	conn          net.PacketConn
	bufs          api.BytePool
	exec          *concurrency.Executor
	logger        *slog.Logger
	clock         api.Clock
	maxPacketSize int

	mu          sync.RWMutex
	conferences map[string]*conference
	byAddr      map[string]*endpoint

	lastN atomic.Int64

	received  atomic.Uint64
	forwarded atomic.Uint64
	dropped   atomic.Uint64
}

var _ overload.LastNTarget = (*Relay)(nil)

// New creates a relay reading from conn and drawing buffers from bufs. The
// caller keeps ownership of conn; Close releases the send workers.
func New(conn net.PacketConn, bufs api.BytePool, opts ...Option) (*Relay, error) {
	if conn == nil || bufs == nil {
		return nil, fmt.Errorf("relay: connection and buffer pool are required: %w", api.ErrInvalidArgument)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxPacketSize <= 0 {
		return nil, fmt.Errorf("relay: max packet size %d must be positive: %w", o.maxPacketSize, api.ErrInvalidArgument)
	}
	r := &Relay{
		conn:          conn,
		bufs:          bufs,
		exec:          concurrency.NewExecutor(o.workers, o.queueSize),
		logger:        o.logger.With(slog.String("component", "relay")),
		clock:         o.clock,
		maxPacketSize: o.maxPacketSize,
		conferences:   make(map[string]*conference),
		byAddr:        make(map[string]*endpoint),
	}
	r.exec.OnPanic(func(v any) {
		r.logger.Error("send task panicked", slog.Any("panic", v))
	})
	r.lastN.Store(Unlimited)
	return r, nil
}

// Join adds an endpoint reachable at addr to a conference, creating the
// conference on first use. An address may belong to one endpoint only.
func (r *Relay) Join(conferenceID, endpointID string, addr net.Addr) error {
	if conferenceID == "" || endpointID == "" || addr == nil {
		return fmt.Errorf("relay: conference, endpoint and address are required: %w", api.ErrInvalidArgument)
	}
	key := addr.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if other, ok := r.byAddr[key]; ok {
		return api.WrapError(api.ErrCodeAlreadyExists, api.ErrAlreadyExists, "address already bound to an endpoint").
			WithContext("address", key).
			WithContext("conference", other.conference).
			WithContext("endpoint", other.id)
	}
	conf, ok := r.conferences[conferenceID]
	if !ok {
		conf = &conference{id: conferenceID, endpoints: make(map[string]*endpoint)}
		r.conferences[conferenceID] = conf
	}
	if _, ok := conf.endpoints[endpointID]; ok {
		return api.WrapError(api.ErrCodeAlreadyExists, api.ErrAlreadyExists, "endpoint already joined").
			WithContext("conference", conferenceID).
			WithContext("endpoint", endpointID)
	}
	ep := &endpoint{id: endpointID, conference: conferenceID, addr: addr}
	conf.endpoints[endpointID] = ep
	r.byAddr[key] = ep
	r.logger.Info("endpoint joined",
		slog.String("conference", conferenceID),
		slog.String("endpoint", endpointID),
		slog.String("address", key))
	return nil
}

// Leave removes an endpoint; an emptied conference is removed as well.
func (r *Relay) Leave(conferenceID, endpointID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conf, ok := r.conferences[conferenceID]
	if !ok {
		return api.WrapError(api.ErrCodeNotFound, api.ErrNotFound, "conference not found").
			WithContext("conference", conferenceID)
	}
	ep, ok := conf.endpoints[endpointID]
	if !ok {
		return api.WrapError(api.ErrCodeNotFound, api.ErrNotFound, "endpoint not found").
			WithContext("conference", conferenceID).
			WithContext("endpoint", endpointID)
	}
	delete(conf.endpoints, endpointID)
	delete(r.byAddr, ep.addr.String())
	if len(conf.endpoints) == 0 {
		delete(r.conferences, conferenceID)
	}
	r.logger.Info("endpoint left",
		slog.String("conference", conferenceID),
		slog.String("endpoint", endpointID))
	return nil
}

// Conferences returns all conferences sorted by id, endpoints sorted by id.
func (r *Relay) Conferences() []ConferenceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConferenceInfo, 0, len(r.conferences))
	for _, conf := range r.conferences {
		info := ConferenceInfo{ID: conf.id, Endpoints: make([]EndpointInfo, 0, len(conf.endpoints))}
		for _, ep := range conf.endpoints {
			info.Endpoints = append(info.Endpoints, EndpointInfo{ID: ep.id, Address: ep.addr.String()})
		}
		slices.SortFunc(info.Endpoints, func(a, b EndpointInfo) int { return strings.Compare(a.ID, b.ID) })
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b ConferenceInfo) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// LastNLimit returns the per-receiver stream cap, Unlimited when none.
func (r *Relay) LastNLimit() int { return int(r.lastN.Load()) }

// SetLastNLimit sets the cap. Negative values mean Unlimited.
func (r *Relay) SetLastNLimit(n int) {
	if n < 0 {
		n = Unlimited
	}
	if old := r.lastN.Swap(int64(n)); old != int64(n) {
		r.logger.Info("last-n limit changed", slog.Int64("from", old), slog.Int("to", n))
	}
}

// MaxConferenceSize returns the endpoint count of the largest conference.
func (r *Relay) MaxConferenceSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	largest := 0
	for _, conf := range r.conferences {
		largest = max(largest, len(conf.endpoints))
	}
	return largest
}

func (r *Relay) PacketsReceived() uint64  { return r.received.Load() }
func (r *Relay) PacketsForwarded() uint64 { return r.forwarded.Load() }
func (r *Relay) PacketsDropped() uint64   { return r.dropped.Load() }

// Run reads datagrams until ctx is done or the connection is closed.
func (r *Relay) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			// Unblocks the pending ReadFrom.
			_ = r.conn.SetReadDeadline(time.Unix(1, 0))
		case <-stop:
		}
	}()

	r.logger.Info("relay started", slog.String("address", r.conn.LocalAddr().String()))
	for {
		buf := r.bufs.Acquire(r.maxPacketSize)
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			r.bufs.Release(buf)
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				r.logger.Info("relay stopped")
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("relay: read: %w", err)
		}
		r.received.Add(1)
		r.route(buf, n, addr)
	}
}

// Close waits for queued sends to finish and stops the workers. It is safe while
// Run is still active: later sends are dropped and their buffers released.
func (r *Relay) Close() error {
	r.exec.Close()
	return nil
}

func (r *Relay) route(buf []byte, n int, from net.Addr) {
	r.mu.RLock()
	sender, ok := r.byAddr[from.String()]
	var targets []net.Addr
	if ok {
		sender.lastActive.Store(r.clock.Now().UnixNano())
		targets = r.receiversLocked(sender)
	}
	r.mu.RUnlock()

	if !ok {
		r.dropped.Add(1)
		r.logger.Debug("packet from unknown sender", slog.String("address", from.String()))
		r.bufs.Release(buf)
		return
	}
	if len(targets) == 0 {
		r.bufs.Release(buf)
		return
	}

	pkt := &packet{buf: buf, data: buf[:n]}
	pkt.refs.Store(int32(len(targets)))
	for _, dst := range targets {
		dst := dst // per-iteration copy; module targets go 1.21 loop semantics
		if err := r.exec.Submit(func() { r.send(pkt, dst) }); err != nil {
			r.dropped.Add(1)
			pkt.done(r.bufs)
		}
	}
}

// receiversLocked picks up to last-N other endpoints, most recently active first.
func (r *Relay) receiversLocked(sender *endpoint) []net.Addr {
	conf := r.conferences[sender.conference]
	if conf == nil || len(conf.endpoints) < 2 {
		return nil
	}
	others := make([]*endpoint, 0, len(conf.endpoints)-1)
	for _, ep := range conf.endpoints {
		if ep != sender {
			others = append(others, ep)
		}
	}
	if limit := int(r.lastN.Load()); limit >= 0 && limit < len(others) {
		slices.SortFunc(others, func(a, b *endpoint) int {
			la, lb := a.lastActive.Load(), b.lastActive.Load()
			switch {
			case la > lb:
				return -1
			case la < lb:
				return 1
			}
			return strings.Compare(a.id, b.id)
		})
		others = others[:limit]
	}
	addrs := make([]net.Addr, len(others))
	for i, ep := range others {
		addrs[i] = ep.addr
	}
	return addrs
}

func (r *Relay) send(pkt *packet, dst net.Addr) {
	defer pkt.done(r.bufs)
	if _, err := r.conn.WriteTo(pkt.data, dst); err != nil {
		r.dropped.Add(1)
		r.logger.Debug("send failed", slog.String("address", dst.String()), slog.Any("error", err))
		return
	}
	r.forwarded.Add(1)
}
