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

// Package cc wires C1–C10 plus access control, the provider/consumer
// API, and the external transports into one running process: the
// cluster controller. Controller owns every collaborator's lifecycle.
package cc

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joynr-go/cluster-controller/internal/accesscontrol"
	"github.com/joynr-go/cluster-controller/internal/codec"
	"github.com/joynr-go/cluster-controller/internal/config"
	"github.com/joynr-go/cluster-controller/internal/dispatcher"
	"github.com/joynr-go/cluster-controller/internal/lcd"
	"github.com/joynr-go/cluster-controller/internal/message"
	"github.com/joynr-go/cluster-controller/internal/metrics"
	"github.com/joynr-go/cluster-controller/internal/msgqueue"
	"github.com/joynr-go/cluster-controller/internal/persistence"
	"github.com/joynr-go/cluster-controller/internal/providerapi"
	"github.com/joynr-go/cluster-controller/internal/pubmgr"
	"github.com/joynr-go/cluster-controller/internal/replycallers"
	"github.com/joynr-go/cluster-controller/internal/router"
	"github.com/joynr-go/cluster-controller/internal/routingtable"
	"github.com/joynr-go/cluster-controller/internal/scheduler"
	"github.com/joynr-go/cluster-controller/internal/stubs"
	"github.com/joynr-go/cluster-controller/internal/submgr"
	"github.com/joynr-go/cluster-controller/internal/tlsstore"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"
)

const defaultPoolWorkers = 8

// Controller owns one cluster controller process: the message plane
// (C1–C10), the local access-control policy database, the registered
// in-process providers, and the transports that accept traffic from
// locally attached libjoynr runtimes.
type Controller struct {
	cfg       config.Config
	localID   string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	pool      *scheduler.Pool
	delayed   *scheduler.Delayed
	codec     codec.Codec
	table     *routingtable.Table
	queue     *msgqueue.Queue
	stubs     *stubs.Factory
	inprocess *stubs.InProcessFactory
	websocket *stubs.WebSocketFactory
	router    *router.Router
	replyCall *replycallers.Directory
	dispatch  *dispatcher.Dispatcher
	pubMgr    *pubmgr.Manager
	subMgr    *submgr.Manager
	lcdDir    *lcd.Directory
	access    *accesscontrol.DBChecker // nil when access control is disabled

	participantIDs *persistence.KeyValueStore
	multicastRecv  *persistence.KeyValueStore

	providers *xsync.Map[string, *providerapi.Provider]

	mu    sync.RWMutex
	names map[string]string // logical provider name -> participant id

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New wires every collaborator per cfg but starts nothing. localID is
// this process's own participant id, used as the router's notion of
// "this CC"; an empty string generates a fresh one.
func New(cfg config.Config, localID string, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if localID == "" {
		localID = uuid.NewString()
	}

	m := metrics.NewMetrics()
	delayed, err := scheduler.NewDelayed()
	if err != nil {
		return nil, fmt.Errorf("start scheduler: %w", err)
	}
	pool := scheduler.NewPool(defaultPoolWorkers)

	table := routingtable.New(m)
	queue := msgqueue.New(msgqueue.Caps{}, func(key string, msg message.Message) {
		logger.Warn("evicted queued message", "key", key, "messageId", msg.ID)
	}, m)

	stubFactory := stubs.NewFactory()
	inprocess := &stubs.InProcessFactory{}
	stubFactory.RegisterMiddlewareFactory(inprocess)
	wsFactory := stubs.NewWebSocketFactory()
	stubFactory.RegisterMiddlewareFactory(wsFactory)
	if cfg.MQTT.Enabled {
		stubFactory.RegisterMiddlewareFactory(stubs.NewMQTTFactory(1))
	}

	c := &Controller{
		cfg:       cfg,
		localID:   localID,
		logger:    logger,
		metrics:   m,
		pool:      pool,
		delayed:   delayed,
		codec:     codec.NewJSON(),
		table:     table,
		queue:     queue,
		stubs:     stubFactory,
		inprocess: inprocess,
		websocket: wsFactory,
		providers: xsync.NewMap[string, *providerapi.Provider](),
	}

	c.replyCall = replycallers.New(delayed, m)

	c.router = router.New(router.Config{
		LocalParticipantID: localID,
		MaxRetries:         3,
		Backoff:            router.Backoff{Base: 100 * time.Millisecond, Factor: 2, Cap: 30 * time.Second},
		DeliverLocal: func(encoded []byte) {
			if err := c.dispatch.HandleInbound(context.Background(), encoded); err != nil {
				logger.Warn("failed to handle locally-addressed message", "error", err)
			}
		},
		OnFailure: func(messageID string, err error) {
			if caller, ok := c.replyCall.Take(messageID); ok {
				caller.OnError(err)
				return
			}
			logger.Warn("message delivery failed permanently", "messageId", messageID, "error", err)
		},
	}, table, queue, stubFactory, delayed, m, logger, c.codec)

	c.dispatch = dispatcher.New(localID, c.codec, c.router, c.replyCall, logger)
	inprocess.Deliver = func(encoded []byte) error {
		return c.dispatch.HandleInbound(context.Background(), encoded)
	}

	persistDir := filepath.Dir(cfg.LibJoynr.ParticipantIDsPersistenceFile)
	c.pubMgr = pubmgr.New(
		persistence.NewStore(filepath.Join(persistDir, "PublicationState.persist")),
		delayed, c.dispatch, m, logger,
	)
	c.pubMgr.SetProviderResolver(c.resolveProviderCaller)
	c.dispatch.SetSubscriptionRequestHandler(c.pubMgr)

	c.subMgr = submgr.New(c.dispatch, delayed, m, logger)
	c.dispatch.SetPublicationHandler(c.subMgr)

	c.lcdDir = lcd.New(
		lcd.Config{
			Backoff:    router.Backoff{Base: time.Second, Factor: 2, Cap: time.Minute},
			MaxRetries: 3,
		},
		nil, // no global directory peer wired; registrations and lookups stay local-only
		persistence.NewStore(filepath.Join(persistDir, "LocalCapabilitiesDirectory.persist")),
		delayed, m, logger,
	)

	c.participantIDs = persistence.NewKeyValueStore(cfg.LibJoynr.ParticipantIDsPersistenceFile)
	c.multicastRecv = persistence.NewKeyValueStore(cfg.ClusterController.MulticastReceiverDirectoryPersistenceFile)

	names, err := c.participantIDs.Load()
	if err != nil {
		return nil, fmt.Errorf("load participant id file: %w", err)
	}
	c.names = names

	receivers, err := c.multicastRecv.Load()
	if err != nil {
		return nil, fmt.Errorf("load multicast receiver directory: %w", err)
	}
	for multicastID, joined := range receivers {
		for _, subscriberID := range strings.Split(joined, ",") {
			if subscriberID != "" {
				c.router.AddMulticastReceiver(multicastID, subscriberID)
			}
		}
	}

	if cfg.AccessControl.Enabled {
		checker, err := accesscontrol.Open(cfg.AccessControl.DatabasePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open access control database: %w", err)
		}
		c.access = checker
		c.dispatch.SetAccessControl(checker)
	}

	return c, nil
}

// Dispatcher exposes the Dispatcher for consumerapi.Dispatcher wiring.
func (c *Controller) Dispatcher() *dispatcher.Dispatcher { return c.dispatch }

// SubscriptionManager exposes the Subscription Manager for
// consumerapi.SubscriptionManager wiring.
func (c *Controller) SubscriptionManager() *submgr.Manager { return c.subMgr }

// LocalCapabilitiesDirectory exposes the LCD for discovery calls.
func (c *Controller) LocalCapabilitiesDirectory() *lcd.Directory { return c.lcdDir }

// AccessControl exposes the access-control database for administrative
// Grant/Revoke calls. Returns nil when access control is disabled.
func (c *Controller) AccessControl() *accesscontrol.DBChecker { return c.access }

// ParticipantID returns this process's own participant id.
func (c *Controller) ParticipantID() string { return c.localID }

func (c *Controller) resolveProviderCaller(providerID, name string) (pubmgr.ProviderCaller, bool) {
	p, ok := c.providers.Load(providerID)
	if !ok {
		return pubmgr.ProviderCaller{}, false
	}
	return p.Caller(name)
}

// RegisterProvider makes p reachable in-process: requests and one-way
// calls addressed to its participant id are routed through the
// in-process stub back into this controller's Dispatcher, without
// going through any network transport.
func (c *Controller) RegisterProvider(p *providerapi.Provider) {
	id := p.ParticipantID()
	c.providers.Store(id, p)

	c.dispatch.RegisterRequestInterpreter(id, p)
	c.router.AddNextHop(id, message.Address{Kind: message.AddressInProcess, ParticipantID: id}, false, 0, true)
}

// UnregisterProvider reverses RegisterProvider and removes any LCD
// entry advertising it.
func (c *Controller) UnregisterProvider(id string) {
	c.providers.Delete(id)

	c.dispatch.UnregisterRequestInterpreter(id)
	c.router.RemoveNextHop(id)
	c.lcdDir.Remove(id)
}

// ResolveParticipantID looks up the participant id previously
// persisted for name, the logical domain/interface combination a
// provider or proxy was built against.
func (c *Controller) ResolveParticipantID(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.names[name]
	return id, ok
}

// PersistParticipantID records that name resolves to participantID,
// so a provider rebuilt after a restart keeps the same id instead of
// generating a fresh one every time.
func (c *Controller) PersistParticipantID(name, participantID string) error {
	c.mu.Lock()
	if c.names == nil {
		c.names = make(map[string]string)
	}
	c.names[name] = participantID
	snapshot := make(map[string]string, len(c.names))
	for k, v := range c.names {
		snapshot[k] = v
	}
	c.mu.Unlock()

	if err := c.participantIDs.Save(snapshot); err != nil {
		return fmt.Errorf("persist participant id file: %w", err)
	}
	return nil
}

// AddMulticastReceiver registers subscriberID as a local receiver of
// multicastID and persists the directory so it survives a restart.
func (c *Controller) AddMulticastReceiver(multicastID, subscriberID string) error {
	c.router.AddMulticastReceiver(multicastID, subscriberID)
	return c.persistMulticastReceivers()
}

// RemoveMulticastReceiver undoes AddMulticastReceiver and persists the
// resulting directory.
func (c *Controller) RemoveMulticastReceiver(multicastID, subscriberID string) error {
	c.router.RemoveMulticastReceiver(multicastID, subscriberID)
	return c.persistMulticastReceivers()
}

func (c *Controller) persistMulticastReceivers() error {
	snapshot := make(map[string]string)
	for multicastID, subscriberIDs := range c.router.MulticastReceiverDirectory() {
		snapshot[multicastID] = strings.Join(subscriberIDs, ",")
	}
	if err := c.multicastRecv.Save(snapshot); err != nil {
		return fmt.Errorf("persist multicast receiver directory: %w", err)
	}
	return nil
}

// AdvertiseProvider registers entry with the Local Capabilities
// Directory so consumers can discover id by domain/interface rather
// than by participant id directly. onSuccess/onError follow Add's own
// asynchronous contract (global registration may retry in the
// background when entry.ProviderQos.Scope is lcd.ScopeGlobal).
func (c *Controller) AdvertiseProvider(entry lcd.Entry, awaitGlobalRegistration bool, onSuccess func(), onError func(error)) {
	c.lcdDir.Add(entry, awaitGlobalRegistration, onSuccess, onError)
}

// Start launches the background transports (metrics exposition,
// WebSocket server) configured in cfg. It returns as soon as they are
// launched, without waiting for them to start listening; a listen
// failure is reported by Wait.
func (c *Controller) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	g, ctx := errgroup.WithContext(ctx)
	c.group = g

	if c.cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.CreateMetricsServer(&c.cfg)
		})
	}

	if c.cfg.ClusterController.WSPort != 0 {
		ws, err := newWebSocketServer(c, c.cfg.ClusterController.WSPort, c.logger)
		if err != nil {
			cancel()
			return fmt.Errorf("build websocket server: %w", err)
		}
		g.Go(func() error { return ws.run(ctx) })
	}

	if c.cfg.ClusterController.WSTLSPort != 0 && c.cfg.WebSocket.CertFile != "" {
		tlsConfig, err := tlsstore.Load(c.cfg.WebSocket.CertFile, c.cfg.WebSocket.KeyFile, c.cfg.WebSocket.CAFile)
		if err != nil {
			cancel()
			return fmt.Errorf("load websocket tls material: %w", err)
		}
		wss, err := newWebSocketServerWithTLS(c, c.cfg.ClusterController.WSTLSPort, tlsConfig, c.logger)
		if err != nil {
			cancel()
			return fmt.Errorf("build tls websocket server: %w", err)
		}
		g.Go(func() error { return wss.run(ctx) })
	}

	return nil
}

// Wait blocks until every transport started by Start has stopped,
// returning the first error any of them reported.
func (c *Controller) Wait() error {
	if c.group == nil {
		return nil
	}
	return c.group.Wait()
}

// Drain stops accepting new work from transports and lets in-flight
// request interpretation and persistence writes finish, without yet
// releasing any collaborator's resources. Call Stop afterward.
func (c *Controller) Drain() {
	if c.cancel != nil {
		c.cancel()
	}
	c.pool.Shutdown()
}

// Stop releases every collaborator's resources. Safe to call after
// Drain or directly; idempotent enough for a single shutdown path.
func (c *Controller) Stop() error {
	if err := c.delayed.Shutdown(); err != nil {
		c.logger.Error("failed to stop scheduler", "error", err)
	}
	if c.access != nil {
		if err := c.access.Close(); err != nil {
			c.logger.Error("failed to close access control database", "error", err)
		}
	}
	return nil
}
