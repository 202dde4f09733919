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

package tlsstore_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joynr-go/cluster-controller/internal/tlsstore"
	"github.com/stretchr/testify/require"
)

func writeSelfSignedCert(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")

	certOut, err := os.Create(certPath)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, certOut.Close())

	keyDER, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	keyOut, err := os.Create(keyPath)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))
	require.NoError(t, keyOut.Close())
	return certPath, keyPath
}

func TestLoadWithoutCAUsesSystemPool(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	certPath, keyPath := writeSelfSignedCert(t, dir)

	cfg, err := tlsstore.Load(certPath, keyPath, "")
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)
	require.Nil(t, cfg.RootCAs)
}

func TestLoadWithCAPopulatesPool(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	certPath, keyPath := writeSelfSignedCert(t, dir)

	cfg, err := tlsstore.Load(certPath, keyPath, certPath)
	require.NoError(t, err)
	require.NotNil(t, cfg.RootCAs)
}

func TestLoadMissingCertFileFails(t *testing.T) {
	t.Parallel()
	_, err := tlsstore.Load("/nonexistent/cert.pem", "/nonexistent/key.pem", "")
	require.Error(t, err)
}
