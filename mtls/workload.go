// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mtls

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

type certConfigs struct {
	Workload *workloadSource `json:"workload"`
}

type workloadSource struct {
	CertPath string `json:"cert_path"`
	KeyPath  string `json:"key_path"`
}

type certificateConfig struct {
	CertConfigs certConfigs `json:"cert_configs"`
}

// NewWorkloadCertSource creates a certificate source that reads a certificate
// and private key file from the local file system, intended for workload
// identity federation.
//
// The configFilePath points to a config file containing relevant parameters
// such as the certificate and key file paths. If configFilePath is empty, the
// path is taken from the GOOGLE_API_CERTIFICATE_CONFIG environment variable
// or, failing that, the well-known gcloud location. A missing config file is
// reported as [ErrSourceUnavailable].
func NewWorkloadCertSource(configFilePath string) (Source, error) {
	if configFilePath == "" {
		if envPath := os.Getenv(certConfigEnv); envPath != "" {
			configFilePath = envPath
		} else {
			p, err := defaultConfigFilePath()
			if err != nil {
				return nil, err
			}
			configFilePath = p
		}
	}

	certFile, keyFile, err := getCertAndKeyFiles(configFilePath)
	if err != nil {
		return nil, err
	}

	return (&workloadSource{
		CertPath: certFile,
		KeyPath:  keyFile,
	}).getClientCertificate, nil
}

func (s *workloadSource) getClientCertificate(info *tls.CertificateRequestInfo) (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(s.CertPath, s.KeyPath)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// getCertAndKeyFiles reads the config file and returns the certificate and
// private key file paths.
func getCertAndKeyFiles(configFilePath string) (string, string, error) {
	b, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", ErrSourceUnavailable
		}
		return "", "", err
	}

	var config certificateConfig
	if err := json.Unmarshal(b, &config); err != nil {
		return "", "", err
	}
	if config.CertConfigs.Workload == nil {
		return "", "", errors.New("mtls: workload certificate information not found in certificate configuration")
	}
	certFile := config.CertConfigs.Workload.CertPath
	keyFile := config.CertConfigs.Workload.KeyPath
	if certFile == "" {
		return "", "", errors.New("mtls: certificate file location could not be found in the certificate configuration")
	}
	if keyFile == "" {
		return "", "", errors.New("mtls: key file location could not be found in the certificate configuration")
	}
	return certFile, keyFile, nil
}

func defaultConfigFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "gcloud", "certificate_config.json"), nil
}
