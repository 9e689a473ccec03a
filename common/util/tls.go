// Copyright 2024 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package util

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/juju/errors"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/security/advancedtls"
)

// TLSConfig locates the PEM files for mutual TLS. Both peers present a certificate
// signed by SSLCA.
type TLSConfig struct {
	SSLCA   string
	SSLCert string
	SSLKey  string
}

// NewServerCreds creates server credentials that reject clients without a valid certificate.
func NewServerCreds(o *TLSConfig) (credentials.TransportCredentials, error) {
	options, err := o.options()
	if err != nil {
		return nil, errors.Trace(err)
	}
	options.RequireClientCert = true
	return advancedtls.NewServerCreds(options)
}

func NewClientCreds(o *TLSConfig) (credentials.TransportCredentials, error) {
	options, err := o.options()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return advancedtls.NewClientCreds(options)
}

func (o *TLSConfig) options() (*advancedtls.Options, error) {
	pem, err := os.ReadFile(o.SSLCA)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read certificate authority")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.NotValidf("certificate authority %s", o.SSLCA)
	}
	certificate, err := tls.LoadX509KeyPair(o.SSLCert, o.SSLKey)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to load key pair %s", o.SSLCert)
	}
	return &advancedtls.Options{
		IdentityOptions: advancedtls.IdentityCertificateOptions{
			Certificates: []tls.Certificate{certificate},
		},
		RootOptions: advancedtls.RootCertificateOptions{
			RootCertificates: pool,
		},
		VerificationType: advancedtls.CertVerification,
	}, nil
}
