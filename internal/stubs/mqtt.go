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

package stubs

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/joynr-go/cluster-controller/internal/message"
)

// MQTTFactory produces stubs that publish onto a broker. One
// mqtt.Client is kept per broker URL and shared across every topic
// stub on that broker.
type MQTTFactory struct {
	mu      sync.Mutex
	clients map[string]mqtt.Client // keyed by BrokerURL
	QoS     byte
}

// NewMQTTFactory constructs a factory publishing at qos.
func NewMQTTFactory(qos byte) *MQTTFactory {
	return &MQTTFactory{
		clients: make(map[string]mqtt.Client),
		QoS:     qos,
	}
}

// CanCreate implements SubFactory.
func (f *MQTTFactory) CanCreate(addr message.Address) bool {
	return addr.Kind == message.AddressMQTT
}

// Create implements SubFactory.
func (f *MQTTFactory) Create(addr message.Address) (Stub, error) {
	client, err := f.clientFor(addr.BrokerURL)
	if err != nil {
		return nil, err
	}
	return &mqttStub{client: client, topic: addr.Topic, qos: f.QoS}, nil
}

func (f *MQTTFactory) clientFor(brokerURL string) (mqtt.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[brokerURL]; ok {
		return c, nil
	}

	opts := mqtt.NewClientOptions().AddBroker(brokerURL)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", brokerURL, err)
	}

	f.clients[brokerURL] = client
	return client, nil
}

type mqttStub struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func (s *mqttStub) Send(encoded []byte, onFailure func(error)) error {
	token := s.client.Publish(s.topic, s.qos, false, encoded)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil && onFailure != nil {
			onFailure(err)
		}
	}()
	return nil
}

func (s *mqttStub) Close() error { return nil }
