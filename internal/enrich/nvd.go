// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/scansentry/scansentry/internal/model"
)

// NVDFeed implements Feed against the NVD 2.0 keywordSearch endpoint. All
// failure modes — 403, other non-200, timeout, malformed JSON — collapse to
// (nil, nil): the caller maps that to NO_CVES_FOUND rather than failing the
// scan (§6, §4.I).
type NVDFeed struct {
	BaseURL string
	Client  *http.Client
	APIKey  string
}

// NewNVDFeed builds a feed client with a bounded timeout per §5 (≤15s).
func NewNVDFeed(apiKey string) *NVDFeed {
	return &NVDFeed{
		BaseURL: "https://services.nvd.nist.gov/rest/json/cves/2.0",
		Client:  &http.Client{Timeout: 15 * time.Second},
		APIKey:  apiKey,
	}
}

type nvdResponse struct {
	Vulnerabilities []struct {
		CVE struct {
			ID      string `json:"id"`
			Metrics struct {
				CVSSMetricV31 []nvdCVSSMetric `json:"cvssMetricV31"`
				CVSSMetricV30 []nvdCVSSMetric `json:"cvssMetricV30"`
				CVSSMetricV2  []nvdCVSSMetric `json:"cvssMetricV2"`
			} `json:"metrics"`
			Descriptions []struct {
				Lang  string `json:"lang"`
				Value string `json:"value"`
			} `json:"descriptions"`
		} `json:"cve"`
	} `json:"vulnerabilities"`
}

type nvdCVSSMetric struct {
	CVSSData struct {
		BaseScore float64 `json:"baseScore"`
	} `json:"cvssData"`
}

// Fetch queries NVD for a service[±version] keyword.
func (f *NVDFeed) Fetch(ctx context.Context, service, version string) ([]model.CVE, error) {
	keyword := service
	if version != "" {
		keyword = service + " " + version
	}
	q := url.Values{}
	q.Set("keywordSearch", keyword)
	q.Set("resultsPerPage", "20")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, nil
	}
	if f.APIKey != "" {
		req.Header.Set("apiKey", f.APIKey)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, nil // timeout, DNS failure, connection refused — all non-fatal
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode >= 500 || resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var parsed nvdResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, nil // malformed JSON is tolerated, not propagated
	}

	out := make([]model.CVE, 0, len(parsed.Vulnerabilities))
	for _, v := range parsed.Vulnerabilities {
		score := bestScore(v.CVE.Metrics.CVSSMetricV31, v.CVE.Metrics.CVSSMetricV30, v.CVE.Metrics.CVSSMetricV2)
		summary := ""
		for _, d := range v.CVE.Descriptions {
			if d.Lang == "en" {
				summary = d.Value
				break
			}
		}
		out = append(out, model.CVE{ID: v.CVE.ID, CVSS: score, Summary: summary})
	}
	return out, nil
}

func bestScore(sets ...[]nvdCVSSMetric) float64 {
	for _, set := range sets {
		if len(set) > 0 {
			return set[0].CVSSData.BaseScore
		}
	}
	return 0
}
