// SPDX-License-Identifier: AGPL-3.0-or-later
// cluster-controller - a distributed service-oriented middleware core
// Copyright (C) 2026 The cluster-controller contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package lcd is the Local Capabilities Directory: the CC-local cache
// of provider registrations, with global-directory backed lookup,
// pending-lookup coalescing, and proxy-side arbitration.
package lcd

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joynr-go/cluster-controller/internal/ccerrors"
	"github.com/joynr-go/cluster-controller/internal/message"
	"github.com/joynr-go/cluster-controller/internal/metrics"
	"github.com/joynr-go/cluster-controller/internal/persistence"
	"github.com/joynr-go/cluster-controller/internal/router"
	"github.com/joynr-go/cluster-controller/internal/scheduler"
)

// Scope is a provider's registration visibility.
type Scope int

const (
	ScopeLocal Scope = iota
	ScopeGlobal
)

// DiscoveryScope controls how a lookup blends local cache and global
// directory results.
type DiscoveryScope int

const (
	DiscoveryLocalOnly DiscoveryScope = iota
	DiscoveryLocalThenGlobal
	DiscoveryLocalAndGlobal
	DiscoveryGlobalOnly
)

// ProviderQos is the subset of a provider's registration qos the
// directory filters and arbitrates on.
type ProviderQos struct {
	Scope             Scope
	Priority          int64
	SupportsOnChange  bool
	CustomParameters  map[string]string
}

// Entry is one local capabilities directory row. ParticipantID is the
// primary key; (Domain, InterfaceName, MajorVersion) may have many
// entries.
type Entry struct {
	Domain        string
	InterfaceName string
	MajorVersion  int
	ParticipantID string
	ProviderQos   ProviderQos
	LastSeenMs    int64
	ExpiryMs      int64
	PublicKeyID   string
	Address       message.Address
}

func (e Entry) expired(now int64) bool {
	return e.ExpiryMs != 0 && e.ExpiryMs <= now
}

// DiscoveryQos controls a single lookup call.
type DiscoveryQos struct {
	Scope                       DiscoveryScope
	CacheMaxAgeMs               int64
	DiscoveryTimeoutMs          int64
	RetryIntervalMs             int64
	ProviderMustSupportOnChange bool
}

// Candidate is a lookup result entry tagged with whether it came from
// the local cache or the global directory.
type Candidate struct {
	Entry Entry
	Local bool
}

// GlobalDirectoryClient is the external peer-to-peer discovery
// collaborator. Implementations (e.g. internal/lcd/grpcdirectory) must
// return ccerrors.ErrTransport-wrapped errors for retryable failures.
type GlobalDirectoryClient interface {
	Register(ctx context.Context, e Entry) error
	Unregister(ctx context.Context, participantID string) error
	Lookup(ctx context.Context, domains []string, interfaceName string) ([]Entry, error)
	LookupByParticipantID(ctx context.Context, participantID string) (Entry, bool, error)
}

type waiter struct {
	scope     DiscoveryScope
	onSuccess func([]Candidate)
	onError   func(error)
}

type pendingLookup struct {
	waiters []waiter
}

// persistedState is the on-disk shape for the atomic write-replace
// cache, keyed by participant id exactly like pubmgr's subscription
// snapshot.
type persistedState struct {
	Entries map[string]Entry
}

// Directory is the Local Capabilities Directory. Use New.
type Directory struct {
	mu            sync.Mutex
	byParticipant map[string]Entry
	byKey         map[string]map[string]struct{} // domain|interface -> participantIds

	pendingDomainLookups  map[string]*pendingLookup
	pendingIDLookups      map[string]*pendingLookup

	global  GlobalDirectoryClient
	store   *persistence.Store
	delayed *scheduler.Delayed
	metrics *metrics.Metrics
	logger  *slog.Logger

	backoff    router.Backoff
	maxRetries int

	now func() int64
}

// Config bundles the tunables New needs beyond its collaborators.
type Config struct {
	Backoff    router.Backoff
	MaxRetries int
}

// New constructs an empty directory. global may be nil — registrations
// stay local-only, and lookups return only the local matches their
// scope includes (none for DiscoveryGlobalOnly). m and logger may be nil.
func New(cfg Config, global GlobalDirectoryClient, store *persistence.Store, delayed *scheduler.Delayed, m *metrics.Metrics, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		byParticipant:        make(map[string]Entry),
		byKey:                make(map[string]map[string]struct{}),
		pendingDomainLookups: make(map[string]*pendingLookup),
		pendingIDLookups:     make(map[string]*pendingLookup),
		global:               global,
		store:                store,
		delayed:              delayed,
		metrics:              m,
		logger:               logger,
		backoff:              cfg.Backoff,
		maxRetries:           cfg.MaxRetries,
		now:                  func() int64 { return time.Now().UnixMilli() },
	}
}

func domainKey(domain, interfaceName string) string {
	return domain + "\x00" + interfaceName
}

// Add inserts entry into the local cache, indexed by participant id and
// by (domain, interfaceName). If the entry's scope is GLOBAL, it is
// also registered with the Global Directory Client, retried on
// transient failure; onSuccess fires immediately unless
// awaitGlobalRegistration is true, in which case it fires only after
// the global ack. The local cache is persisted before onSuccess ever
// fires.
func (d *Directory) Add(entry Entry, awaitGlobalRegistration bool, onSuccess func(), onError func(error)) {
	entry.LastSeenMs = d.now()

	d.mu.Lock()
	d.byParticipant[entry.ParticipantID] = entry
	key := domainKey(entry.Domain, entry.InterfaceName)
	if d.byKey[key] == nil {
		d.byKey[key] = make(map[string]struct{})
	}
	d.byKey[key][entry.ParticipantID] = struct{}{}
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.LCDEntriesTotal.Set(float64(d.len()))
	}
	d.persist()

	d.completeLocalThenGlobalWaiters(entry.Domain, entry.InterfaceName)

	if entry.ProviderQos.Scope != ScopeGlobal || d.global == nil {
		if onSuccess != nil {
			onSuccess()
		}
		return
	}

	if !awaitGlobalRegistration && onSuccess != nil {
		onSuccess()
		onSuccess = nil
	}
	d.registerGlobal(entry, 0, onSuccess, onError)
}

func (d *Directory) registerGlobal(entry Entry, tryCount int, onSuccess func(), onError func(error)) {
	err := d.global.Register(context.Background(), entry)
	if err == nil {
		if onSuccess != nil {
			onSuccess()
		}
		return
	}
	if !ccerrors.IsTransient(err) || (d.maxRetries > 0 && tryCount >= d.maxRetries) {
		d.logger.Error("global directory registration failed", "participantId", entry.ParticipantID, "error", err)
		if onError != nil {
			onError(err)
		}
		return
	}
	if d.delayed == nil {
		if onError != nil {
			onError(err)
		}
		return
	}
	delay := d.backoff.Delay(tryCount)
	_, schedErr := d.delayed.Schedule(delay, func() {
		d.registerGlobal(entry, tryCount+1, onSuccess, onError)
	})
	if schedErr != nil {
		d.logger.Error("failed to schedule global registration retry", "error", schedErr)
		if onError != nil {
			onError(err)
		}
	}
}

func (d *Directory) completeLocalThenGlobalWaiters(domain, interfaceName string) {
	key := domainKey(domain, interfaceName)
	d.mu.Lock()
	pending, ok := d.pendingDomainLookups[key]
	if !ok {
		d.mu.Unlock()
		return
	}
	var remaining []waiter
	var toComplete []waiter
	for _, w := range pending.waiters {
		if w.scope == DiscoveryLocalThenGlobal {
			toComplete = append(toComplete, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	pending.waiters = remaining
	local := d.localMatches(domain, interfaceName, 0, false)
	d.mu.Unlock()

	for _, w := range toComplete {
		w.onSuccess(local)
	}
}

// localMatches returns every non-expired local entry for (domain,
// interfaceName) at most cacheMaxAgeMs old (0 disables the age
// filter), optionally requiring on-change support. Callers must hold
// d.mu.
func (d *Directory) localMatches(domain, interfaceName string, cacheMaxAgeMs int64, mustSupportOnChange bool) []Candidate {
	key := domainKey(domain, interfaceName)
	ids := d.byKey[key]
	now := d.now()
	var out []Candidate
	for id := range ids {
		e, ok := d.byParticipant[id]
		if !ok || e.expired(now) {
			continue
		}
		if cacheMaxAgeMs > 0 && now-e.LastSeenMs > cacheMaxAgeMs {
			continue
		}
		if mustSupportOnChange && !e.ProviderQos.SupportsOnChange {
			continue
		}
		out = append(out, Candidate{Entry: e, Local: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entry.ParticipantID < out[j].Entry.ParticipantID })
	return out
}

// Lookup resolves providers for (domains, interfaceName) per q.Scope.
// Concurrent lookups for the same (domain, interfaceName) while a
// global call is in flight are coalesced onto a single RPC; every
// waiter receives the same result.
func (d *Directory) Lookup(domains []string, interfaceName string, q DiscoveryQos, onSuccess func([]Candidate), onError func(error)) {
	var all []Candidate
	localByDomain := make(map[string][]Candidate)
	d.mu.Lock()
	for _, dom := range domains {
		local := d.localMatches(dom, interfaceName, q.CacheMaxAgeMs, q.ProviderMustSupportOnChange)
		localByDomain[dom] = local
		all = append(all, local...)
	}
	d.mu.Unlock()

	switch q.Scope {
	case DiscoveryLocalOnly:
		onSuccess(all)
		return
	case DiscoveryLocalThenGlobal:
		if len(all) > 0 {
			onSuccess(all)
			return
		}
		d.globalLookup(domains, interfaceName, q, DiscoveryLocalThenGlobal, nil, onSuccess, onError)
	case DiscoveryLocalAndGlobal:
		d.globalLookup(domains, interfaceName, q, DiscoveryLocalAndGlobal, all, onSuccess, onError)
	case DiscoveryGlobalOnly:
		d.globalLookup(domains, interfaceName, q, DiscoveryGlobalOnly, nil, onSuccess, onError)
	}
}

func (d *Directory) globalLookup(domains []string, interfaceName string, q DiscoveryQos, scope DiscoveryScope, mergeWith []Candidate, onSuccess func([]Candidate), onError func(error)) {
	if d.global == nil {
		onSuccess(mergeWith)
		return
	}
	key := domainKey(strings.Join(domains, ","), interfaceName)

	d.mu.Lock()
	pending, inFlight := d.pendingDomainLookups[key]
	if inFlight {
		pending.waiters = append(pending.waiters, waiter{scope: scope, onSuccess: onSuccess, onError: onError})
		d.mu.Unlock()
		return
	}
	pending = &pendingLookup{waiters: []waiter{{scope: scope, onSuccess: onSuccess, onError: onError}}}
	d.pendingDomainLookups[key] = pending
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.LCDCacheMissesTotal.Inc()
	}

	timeout := time.Duration(q.DiscoveryTimeoutMs) * time.Millisecond
	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	entries, err := d.global.Lookup(ctx, domains, interfaceName)

	d.mu.Lock()
	delete(d.pendingDomainLookups, key)
	waiters := pending.waiters
	d.mu.Unlock()

	if err != nil {
		result := err
		if ctx.Err() != nil {
			result = ccerrors.ErrDiscoveryTimeout
		}
		for _, w := range waiters {
			if w.onError != nil {
				w.onError(result)
			}
		}
		return
	}

	var global []Candidate
	for _, e := range entries {
		global = append(global, Candidate{Entry: e, Local: false})
	}
	for _, w := range waiters {
		merged := global
		if w.scope == DiscoveryLocalAndGlobal {
			merged = append(append([]Candidate(nil), mergeWith...), global...)
		}
		w.onSuccess(merged)
	}
}

// LookupByParticipantID is Lookup's by-id counterpart: local first,
// falling back to (and coalescing on) a global lookup when not found
// locally and a global client is configured.
func (d *Directory) LookupByParticipantID(participantID string, onSuccess func(Candidate, bool), onError func(error)) {
	d.mu.Lock()
	e, ok := d.byParticipant[participantID]
	d.mu.Unlock()
	if ok && !e.expired(d.now()) {
		if d.metrics != nil {
			d.metrics.LCDCacheHitsTotal.Inc()
		}
		onSuccess(Candidate{Entry: e, Local: true}, true)
		return
	}
	if d.global == nil {
		onSuccess(Candidate{}, false)
		return
	}

	d.mu.Lock()
	pending, inFlight := d.pendingIDLookups[participantID]
	if inFlight {
		pending.waiters = append(pending.waiters, waiter{
			onSuccess: func(cs []Candidate) {
				if len(cs) == 0 {
					onSuccess(Candidate{}, false)
					return
				}
				onSuccess(cs[0], true)
			},
			onError: onError,
		})
		d.mu.Unlock()
		return
	}
	d.pendingIDLookups[participantID] = &pendingLookup{}
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.LCDCacheMissesTotal.Inc()
	}

	entry, found, err := d.global.LookupByParticipantID(context.Background(), participantID)

	d.mu.Lock()
	pending = d.pendingIDLookups[participantID]
	delete(d.pendingIDLookups, participantID)
	d.mu.Unlock()

	if err != nil {
		if onError != nil {
			onError(err)
		}
		for _, w := range pending.waiters {
			if w.onError != nil {
				w.onError(err)
			}
		}
		return
	}
	if !found {
		onSuccess(Candidate{}, false)
		for _, w := range pending.waiters {
			w.onSuccess(nil)
		}
		return
	}
	onSuccess(Candidate{Entry: entry, Local: false}, true)
	for _, w := range pending.waiters {
		w.onSuccess([]Candidate{{Entry: entry, Local: false}})
	}
}

// Remove deletes participantID from the local cache and, if it was
// globally registered, unregisters it from the Global Directory Client
// (best effort: failures are logged, not returned, since the entry is
// gone locally regardless).
func (d *Directory) Remove(participantID string) {
	d.mu.Lock()
	e, ok := d.byParticipant[participantID]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.byParticipant, participantID)
	key := domainKey(e.Domain, e.InterfaceName)
	delete(d.byKey[key], participantID)
	if len(d.byKey[key]) == 0 {
		delete(d.byKey, key)
	}
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.LCDEntriesTotal.Set(float64(d.len()))
	}
	d.persist()

	if e.ProviderQos.Scope == ScopeGlobal && d.global != nil {
		if err := d.global.Unregister(context.Background(), participantID); err != nil {
			d.logger.Error("global directory unregister failed", "participantId", participantID, "error", err)
		}
	}
}

func (d *Directory) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byParticipant)
}

func (d *Directory) persist() {
	if d.store == nil {
		return
	}
	d.mu.Lock()
	snapshot := make(map[string]Entry, len(d.byParticipant))
	for k, v := range d.byParticipant {
		snapshot[k] = v
	}
	d.mu.Unlock()
	if err := d.store.Save(persistedState{Entries: snapshot}); err != nil {
		d.logger.Error("failed to persist local capabilities directory", "error", err)
	}
}

// Replay loads the persisted cache. Entries past their ExpiryMs are
// dropped rather than reinstated; global-scoped entries are assumed
// still registered with the Global Directory Client and are not
// re-registered.
func (d *Directory) Replay() error {
	if d.store == nil {
		return nil
	}
	var state persistedState
	if err := d.store.Load(&state); err != nil {
		return err
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, e := range state.Entries {
		if e.expired(now) {
			continue
		}
		d.byParticipant[id] = e
		key := domainKey(e.Domain, e.InterfaceName)
		if d.byKey[key] == nil {
			d.byKey[key] = make(map[string]struct{})
		}
		d.byKey[key][id] = struct{}{}
	}
	if d.metrics != nil {
		d.metrics.LCDEntriesTotal.Set(float64(len(d.byParticipant)))
	}
	return nil
}

// ArbitrationStrategy selects one proxy-side tie-breaking rule among
// lookup candidates.
type ArbitrationStrategy int

const (
	ArbitrationHighestPriority ArbitrationStrategy = iota
	ArbitrationLastSeen
	ArbitrationKeyword
	ArbitrationFixedParticipantID
)

// ArbitrationResult carries the entries an arbitration strategy
// selected, most-preferred first.
type ArbitrationResult struct {
	Entries []Candidate
}

// ArbitrationParams configures the keyword and fixed-participant-id
// strategies.
type ArbitrationParams struct {
	Keyword              string
	KeywordParameterName string
	FixedParticipantID   string
}

// Arbitrate applies strategy to candidates and returns the selected
// subset, most-preferred first. An empty candidates slice or no match
// under ArbitrationKeyword/ArbitrationFixedParticipantID yields
// ccerrors.ErrDiscoveryTimeout, mirroring discovery failure being
// terminal at the arbitrator per the error handling design.
func Arbitrate(candidates []Candidate, strategy ArbitrationStrategy, params ArbitrationParams) (ArbitrationResult, error) {
	if len(candidates) == 0 {
		return ArbitrationResult{}, ccerrors.ErrDiscoveryTimeout
	}
	selected := append([]Candidate(nil), candidates...)

	switch strategy {
	case ArbitrationHighestPriority:
		sort.SliceStable(selected, func(i, j int) bool {
			return selected[i].Entry.ProviderQos.Priority > selected[j].Entry.ProviderQos.Priority
		})
	case ArbitrationLastSeen:
		sort.SliceStable(selected, func(i, j int) bool {
			return selected[i].Entry.LastSeenMs > selected[j].Entry.LastSeenMs
		})
	case ArbitrationKeyword:
		var matched []Candidate
		for _, c := range selected {
			if c.Entry.ProviderQos.CustomParameters[params.KeywordParameterName] == params.Keyword {
				matched = append(matched, c)
			}
		}
		if len(matched) == 0 {
			return ArbitrationResult{}, ccerrors.ErrDiscoveryTimeout
		}
		selected = matched
	case ArbitrationFixedParticipantID:
		var matched []Candidate
		for _, c := range selected {
			if c.Entry.ParticipantID == params.FixedParticipantID {
				matched = append(matched, c)
			}
		}
		if len(matched) == 0 {
			return ArbitrationResult{}, ccerrors.ErrDiscoveryTimeout
		}
		selected = matched
	}
	return ArbitrationResult{Entries: selected}, nil
}
